package anon

import "github.com/scrumkit/scrumkit/internal/model"

// Config centralizes all type-specific knowledge for an asset type. Adding a
// type means adding a table row here plus one Tracker.Store call at the
// creation site; claiming logic never changes.
type Config struct {
	StorageKey      string // per-visitor storage key for the ID list
	CookieKey       string // signed-cookie name holding trusted slugs
	TableName       string // Postgres table
	IDColumn        string
	OwnerColumn     string
	AnonymousColumn string
	DisplayName     string
}

var configs = map[model.AssetType]Config{
	model.AssetRetrospective: {
		StorageKey:      "scrumkit_anonymous_boards",
		CookieKey:       "scrumkit_boards",
		TableName:       "retrospectives",
		IDColumn:        "id",
		OwnerColumn:     "owner_id",
		AnonymousColumn: "is_anonymous",
		DisplayName:     "retrospective board",
	},
	model.AssetPokerSession: {
		StorageKey:      "scrumkit_anonymous_poker_sessions",
		CookieKey:       "scrumkit_poker_sessions",
		TableName:       "poker_sessions",
		IDColumn:        "id",
		OwnerColumn:     "owner_id",
		AnonymousColumn: "is_anonymous",
		DisplayName:     "poker session",
	},
}

// ConfigFor returns the config row for an asset type.
func ConfigFor(t model.AssetType) (Config, bool) {
	c, ok := configs[t]
	return c, ok
}

// Types lists the configured asset types in a stable order.
func Types() []model.AssetType {
	return []model.AssetType{model.AssetRetrospective, model.AssetPokerSession}
}
