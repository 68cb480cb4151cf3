// Package model defines domain entities used by services, repositories, and the realtime hub.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// AssetType distinguishes the kinds of shareable assets a visitor can create.
type AssetType string

const (
	AssetRetrospective AssetType = "retrospective"
	AssetPokerSession  AssetType = "poker_session"
)

// AssetStatus is the lifecycle state of a board or poker session.
type AssetStatus string

const (
	StatusActive   AssetStatus = "active"
	StatusEnded    AssetStatus = "ended"
	StatusArchived AssetStatus = "archived"
)

// Asset is a retrospective board or a planning-poker session.
// Invariant: IsAnonymous == (OwnerID == nil); claiming flips both atomically.
type Asset struct {
	ID          uuid.UUID
	Type        AssetType
	Title       string
	OwnerID     *uuid.UUID // nil while anonymously owned
	IsAnonymous bool
	Status      AssetStatus
	UniqueURL   string // public share slug, distinct from ID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RetroItem is a single card on a retrospective board.
type RetroItem struct {
	ID         uuid.UUID
	BoardID    uuid.UUID
	Column     string
	Text       string
	AuthorName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Vote is one participant's vote on an item or story.
// At most one row exists per (SubjectID, ParticipantID); revoting updates in place.
type Vote struct {
	ID            uuid.UUID
	SubjectID     uuid.UUID // retro item or poker story
	ParticipantID string    // authenticated user ID or anonymous "anon-" ID
	Value         string
	Revealed      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Tokens collects issued access tokens for an authenticated session.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// User is a registered account.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte
	CreatedAt time.Time
}

// ClaimRequest carries the client-supplied asset IDs to reconcile after sign-in.
// The lists are untrusted input; the claim service intersects them with the
// slugs held in the signed per-type cookies before touching any row.
type ClaimRequest struct {
	Retrospectives []uuid.UUID
	PokerSessions  []uuid.UUID
}

// ClaimResult reports rows actually reassigned, not rows requested.
type ClaimResult struct {
	Retrospectives int
	PokerSessions  int
	Total          int
}

// PresenceEntry is the ephemeral state one connected participant shares on a channel.
type PresenceEntry struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	Avatar   string    `json:"avatar,omitempty"`
	Color    string    `json:"color"`
	LastSeen time.Time `json:"lastSeen"`
}

// CursorPosition is a broadcast-only cursor update; never persisted.
type CursorPosition struct {
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
}

// ChangeKind labels a row-change event on a realtime channel.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	// ChangeReveal carries a subject id in RowID and uncovers every
	// vote on that subject at once.
	ChangeReveal ChangeKind = "reveal"
)

// RowChange is a single table delta delivered over a board channel.
// Consumers apply insert/update/delete by row ID; reveal applies by
// subject ID across all matching vote rows.
type RowChange struct {
	Table string         `json:"table"`
	Kind  ChangeKind     `json:"kind"`
	RowID string         `json:"rowId"`
	Row   map[string]any `json:"row,omitempty"`
}
