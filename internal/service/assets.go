package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/scrumkit/scrumkit/internal/errs"
	"github.com/scrumkit/scrumkit/internal/limiter"
	"github.com/scrumkit/scrumkit/internal/model"
	"github.com/scrumkit/scrumkit/internal/repository"
	"github.com/scrumkit/scrumkit/internal/sanitize"
	"github.com/scrumkit/scrumkit/internal/slug"
)

// Publisher delivers row-change events to an asset's realtime channel.
type Publisher interface {
	PublishChange(ctx context.Context, topic string, change model.RowChange) error
}

// Topic returns the realtime channel name for an asset.
func Topic(typ model.AssetType, id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", typ, id)
}

const (
	maxTitleLen = 100

	createLimit  = 5
	createWindow = time.Minute
)

// AssetService manages board and poker-session lifecycle.
type AssetService interface {
	// Create inserts a new asset; a nil ownerID creates it anonymously.
	Create(ctx context.Context, typ model.AssetType, title string, ownerID *uuid.UUID, actorID string) (*model.Asset, error)
	// GetByURL loads an asset by public slug.
	GetByURL(ctx context.Context, typ model.AssetType, uniqueURL string) (*model.Asset, error)
	// ListByOwner lists a user's assets of one type.
	ListByOwner(ctx context.Context, typ model.AssetType, ownerID uuid.UUID) ([]model.Asset, error)
	// SetStatus transitions an asset's lifecycle status.
	SetStatus(ctx context.Context, typ model.AssetType, id uuid.UUID, status model.AssetStatus) error
}

type AssetServiceImpl struct {
	assets   repository.AssetRepository
	actions  *limiter.Window
	slugSalt []byte
}

// NewAssetService constructs AssetService. The action limiter instance is
// injected so tests and request scopes stay isolated.
func NewAssetService(assets repository.AssetRepository, actions *limiter.Window, slugSalt []byte) *AssetServiceImpl {
	return &AssetServiceImpl{assets: assets, actions: actions, slugSalt: slugSalt}
}

// Create sanitizes the title, gates on the per-actor creation limit, and
// inserts the asset with a derived public slug.
func (s *AssetServiceImpl) Create(
	ctx context.Context, typ model.AssetType, title string, ownerID *uuid.UUID, actorID string,
) (*model.Asset, error) {
	title = sanitize.UserInput(title, maxTitleLen)
	if title == "" {
		return nil, errors.New("validation: empty title")
	}
	if !s.actions.Allow("create:"+actorID, createLimit, createWindow) {
		return nil, errs.ErrRateLimited
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	a := &model.Asset{
		ID:          id,
		Type:        typ,
		Title:       title,
		OwnerID:     ownerID,
		IsAnonymous: ownerID == nil,
		Status:      model.StatusActive,
		UniqueURL:   slug.ForAsset(id.String(), s.slugSalt),
	}
	if err := s.assets.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetByURL loads an asset by public slug.
func (s *AssetServiceImpl) GetByURL(ctx context.Context, typ model.AssetType, uniqueURL string) (*model.Asset, error) {
	if uniqueURL == "" {
		return nil, errors.New("validation: empty url")
	}
	return s.assets.GetByURL(ctx, typ, uniqueURL)
}

// ListByOwner lists a user's assets of one type.
func (s *AssetServiceImpl) ListByOwner(ctx context.Context, typ model.AssetType, ownerID uuid.UUID) ([]model.Asset, error) {
	if ownerID == uuid.Nil {
		return nil, errors.New("validation: empty ownerID")
	}
	return s.assets.ListByOwner(ctx, typ, ownerID)
}

// SetStatus transitions an asset's lifecycle status.
func (s *AssetServiceImpl) SetStatus(ctx context.Context, typ model.AssetType, id uuid.UUID, status model.AssetStatus) error {
	if id == uuid.Nil {
		return errors.New("validation: empty id")
	}
	return s.assets.SetStatus(ctx, typ, id, status)
}
