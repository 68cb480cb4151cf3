// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/scrumkit/scrumkit/internal/anon"
	"github.com/scrumkit/scrumkit/internal/model"
)

// AssetRepository provides access to boards and poker sessions.
type AssetRepository interface {
	// Create inserts a new asset row.
	Create(ctx context.Context, a *model.Asset) error

	// GetByURL loads an asset by its public slug.
	GetByURL(ctx context.Context, typ model.AssetType, uniqueURL string) (*model.Asset, error)

	// ListByOwner returns the non-archived assets owned by a user.
	ListByOwner(ctx context.Context, typ model.AssetType, ownerID uuid.UUID) ([]model.Asset, error)

	// ClaimAssets reassigns to userID exactly those rows whose ID is in ids,
	// whose slug is in trustedSlugs, and which are still anonymous, atomically
	// setting owner and clearing the anonymous flag. Returns rows matched.
	ClaimAssets(ctx context.Context, cfg anon.Config, userID uuid.UUID, ids []uuid.UUID, trustedSlugs []string) (int, error)

	// Delete removes an asset row.
	Delete(ctx context.Context, typ model.AssetType, id uuid.UUID) error

	// SetStatus updates the lifecycle status.
	SetStatus(ctx context.Context, typ model.AssetType, id uuid.UUID, status model.AssetStatus) error
}

// ItemRepository provides CRUD for retrospective items.
type ItemRepository interface {
	// Create inserts a new item.
	Create(ctx context.Context, it *model.RetroItem) error
	// ListByBoard returns a board's items ordered by creation time.
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]model.RetroItem, error)
	// GetItem loads a single item by id.
	GetItem(ctx context.Context, id uuid.UUID) (*model.RetroItem, error)
	// UpdateText replaces an item's text.
	UpdateText(ctx context.Context, id uuid.UUID, text string) error
	// Delete removes an item.
	Delete(ctx context.Context, id uuid.UUID) error
}

// VoteRepository provides vote upsert and retrieval.
type VoteRepository interface {
	// Upsert records a vote, replacing any previous vote by the same
	// participant on the same subject. The stored row's id is written
	// back into v.
	Upsert(ctx context.Context, v *model.Vote) error
	// ListBySubject returns all votes for an item or story.
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]model.Vote, error)
	// Reveal marks every vote on a subject as revealed.
	Reveal(ctx context.Context, subjectID uuid.UUID) error
	// Delete removes a participant's vote on a subject, returning the
	// id of the removed row.
	Delete(ctx context.Context, subjectID uuid.UUID, participantID string) (uuid.UUID, error)
}

// UserRepository provides CRUD access for registered accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
