package limiter

import (
	"sync"
	"time"
)

// Window is an in-memory fixed-window limiter gating client actions
// (vote, create, delete). Each instance owns its own key map, so tests
// and independent request scopes never share counters.
//
// The fixed window accepts the boundary burst artifact (up to 2x the limit
// across a window edge); server-side authorization still enforces any real
// constraint.
type Window struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// NewWindow constructs an empty fixed-window limiter.
func NewWindow() *Window {
	return &Window{entries: map[string]*windowEntry{}, now: time.Now}
}

// Allow reports whether another action under key is permitted right now.
// The first call for a key, or any call after its window elapsed, starts a
// fresh window with count 1. A denied call does not mutate state.
func (w *Window) Allow(key string, maxAttempts int, window time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	e, ok := w.entries[key]
	if !ok || !now.Before(e.resetAt) {
		w.entries[key] = &windowEntry{count: 1, resetAt: now.Add(window)}
		return true
	}
	if e.count >= maxAttempts {
		return false
	}
	e.count++
	return true
}

// ResetAfter returns how long until the key's window resets, or 0 if the key
// has no active window.
func (w *Window) ResetAfter(key string) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[key]
	if !ok {
		return 0
	}
	d := e.resetAt.Sub(w.now())
	if d < 0 {
		return 0
	}
	return d
}
