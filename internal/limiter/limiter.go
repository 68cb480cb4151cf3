// Package limiter contains rate limiting for client actions and login attempts.
package limiter

import (
	"context"
	"time"
)

// LoginLimiter controls login attempts and temporary lockouts.
type LoginLimiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, email string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
}
