package anon

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scrumkit/scrumkit/internal/model"
)

// Tracker records which assets a visitor created anonymously, keyed by asset
// type. Corrupt stored JSON is treated as an empty list, never an error.
type Tracker struct {
	storage Storage
}

// NewTracker constructs a tracker over visitor storage.
func NewTracker(storage Storage) *Tracker { return &Tracker{storage: storage} }

// Store appends an asset ID to its type's list, de-duplicated.
func (t *Tracker) Store(ctx context.Context, typ model.AssetType, id string) error {
	cfg, ok := ConfigFor(typ)
	if !ok {
		return fmt.Errorf("unknown asset type %q", typ)
	}
	ids, err := t.readList(ctx, cfg.StorageKey)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	payload, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return t.storage.Set(ctx, cfg.StorageKey, string(payload))
}

// Assets returns the tracked IDs for one asset type.
func (t *Tracker) Assets(ctx context.Context, typ model.AssetType) ([]string, error) {
	cfg, ok := ConfigFor(typ)
	if !ok {
		return nil, fmt.Errorf("unknown asset type %q", typ)
	}
	return t.readList(ctx, cfg.StorageKey)
}

// AllAssets returns tracked IDs for every configured type.
func (t *Tracker) AllAssets(ctx context.Context) (map[model.AssetType][]string, error) {
	out := make(map[model.AssetType][]string, len(configs))
	for _, typ := range Types() {
		ids, err := t.Assets(ctx, typ)
		if err != nil {
			return nil, err
		}
		out[typ] = ids
	}
	return out, nil
}

// Count returns the total number of tracked assets across types.
func (t *Tracker) Count(ctx context.Context) (int, error) {
	all, err := t.AllAssets(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ids := range all {
		n += len(ids)
	}
	return n, nil
}

// ClearAll removes every type's tracked list. Called after a successful claim.
func (t *Tracker) ClearAll(ctx context.Context) error {
	for _, typ := range Types() {
		cfg, _ := ConfigFor(typ)
		if err := t.storage.Delete(ctx, cfg.StorageKey); err != nil {
			return err
		}
	}
	return nil
}

// readList tolerates missing keys and corrupt JSON by returning an empty list.
func (t *Tracker) readList(ctx context.Context, key string) ([]string, error) {
	raw, ok, err := t.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, nil
	}
	return ids, nil
}
