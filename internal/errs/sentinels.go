// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a temporary lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrBadCookie indicates a claim cookie failed signature or format checks.
	// Claim treats it as an empty entitlement, never as a hard failure.
	ErrBadCookie = errors.New("invalid claim cookie")

	// ErrChannelClosed indicates a realtime channel was torn down while in use.
	ErrChannelClosed = errors.New("channel closed")
)
