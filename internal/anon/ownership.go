package anon

import (
	"context"
	"encoding/json"
	"time"
)

const (
	ownershipKey = "scrumkit_anonymous_items"

	// ownershipRetention bounds how long an item-to-pseudo-user pairing is
	// kept. Entries past it are pruned lazily on write.
	ownershipRetention = 7 * 24 * time.Hour
)

// OwnershipRecord pairs an item with the pseudo-user that created it. Records
// live only in the visitor's own storage, so anonymous identity never leaks
// through shared tables.
type OwnershipRecord struct {
	AnonymousUserID string    `json:"anonymousUserId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// OwnershipStore tracks which items the visitor's pseudo-user created.
type OwnershipStore struct {
	storage Storage
	now     func() time.Time
}

// NewOwnershipStore constructs an ownership store over visitor storage.
func NewOwnershipStore(storage Storage) *OwnershipStore {
	return &OwnershipStore{storage: storage, now: time.Now}
}

// Record marks itemID as created by anonUserID and prunes stale entries.
func (s *OwnershipStore) Record(ctx context.Context, itemID, anonUserID string) error {
	records, err := s.read(ctx)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	for id, rec := range records {
		if now.Sub(rec.CreatedAt) > ownershipRetention {
			delete(records, id)
		}
	}
	records[itemID] = OwnershipRecord{AnonymousUserID: anonUserID, CreatedAt: now}
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, ownershipKey, string(payload))
}

// Owner returns the pseudo-user that created itemID, if recorded.
func (s *OwnershipStore) Owner(ctx context.Context, itemID string) (string, bool, error) {
	records, err := s.read(ctx)
	if err != nil {
		return "", false, err
	}
	rec, ok := records[itemID]
	if !ok {
		return "", false, nil
	}
	return rec.AnonymousUserID, true, nil
}

func (s *OwnershipStore) read(ctx context.Context) (map[string]OwnershipRecord, error) {
	raw, ok, err := s.storage.Get(ctx, ownershipKey)
	if err != nil {
		return nil, err
	}
	records := map[string]OwnershipRecord{}
	if !ok {
		return records, nil
	}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return map[string]OwnershipRecord{}, nil
	}
	return records, nil
}
