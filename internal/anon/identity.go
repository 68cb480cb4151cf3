package anon

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

const (
	// IDPrefix distinguishes anonymous IDs from authenticated user IDs
	// without a network round-trip.
	IDPrefix = "anon-"

	identityKey = "scrumkit_anonymous_user"
)

// Identity is a locally-scoped pseudo-user for visitors without a session.
type Identity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	nameAdjectives = []string{"Brave", "Calm", "Clever", "Eager", "Gentle", "Happy", "Keen", "Lucky", "Quick", "Witty"}
	nameAnimals    = []string{"Badger", "Falcon", "Fox", "Heron", "Lynx", "Otter", "Panda", "Raven", "Tiger", "Wolf"}
)

// NewEphemeralIdentity generates a fresh identity. Used directly in execution
// contexts with no per-visitor persistence, where a new identity per call is
// intentional.
func NewEphemeralIdentity() Identity {
	return Identity{
		ID:        IDPrefix + uuid.Must(uuid.NewV4()).String(),
		Name:      pseudoName(),
		CreatedAt: time.Now().UTC(),
	}
}

// IsAnonymousID reports whether an ID belongs to an anonymous pseudo-user.
func IsAnonymousID(id string) bool { return strings.HasPrefix(id, IDPrefix) }

func pseudoName() string {
	adj := nameAdjectives[rand.Intn(len(nameAdjectives))]
	animal := nameAnimals[rand.Intn(len(nameAnimals))]
	return fmt.Sprintf("%s %s", adj, animal)
}

// IdentityStore persists one Identity per visitor scope.
type IdentityStore struct {
	storage Storage
}

// NewIdentityStore constructs an identity store over visitor storage.
func NewIdentityStore(storage Storage) *IdentityStore {
	return &IdentityStore{storage: storage}
}

// GetOrCreate returns the stored identity, regenerating and persisting a new
// one if the stored value is absent or malformed.
func (s *IdentityStore) GetOrCreate(ctx context.Context) (Identity, error) {
	raw, ok, err := s.storage.Get(ctx, identityKey)
	if err != nil {
		return Identity{}, err
	}
	if ok {
		var id Identity
		if jsonErr := json.Unmarshal([]byte(raw), &id); jsonErr == nil && id.ID != "" && id.Name != "" {
			return id, nil
		}
		// malformed: fall through and regenerate
	}
	id := NewEphemeralIdentity()
	payload, err := json.Marshal(id)
	if err != nil {
		return Identity{}, err
	}
	if err := s.storage.Set(ctx, identityKey, string(payload)); err != nil {
		return Identity{}, err
	}
	return id, nil
}
