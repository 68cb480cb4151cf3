// Package anon manages anonymous visitor identity and the assets created
// before sign-in, over a per-visitor key/value storage abstraction.
package anon

import (
	"context"
	"sync"
)

// Storage is per-visitor persistent key/value storage. Implementations must
// scope keys to a single visitor; values are opaque JSON strings.
type Storage interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryStorage is an in-process Storage for tests and single-node setups.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryStorage constructs an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: map[string]string{}}
}

func (s *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// SharedMemoryStorage hands out one MemoryStorage per visitor. It backs
// single-node deployments that run without Redis.
type SharedMemoryStorage struct {
	mu     sync.Mutex
	scopes map[string]*MemoryStorage
}

// NewSharedMemoryStorage constructs an empty per-visitor store.
func NewSharedMemoryStorage() *SharedMemoryStorage {
	return &SharedMemoryStorage{scopes: map[string]*MemoryStorage{}}
}

// For returns the visitor's storage scope, creating it on first use.
func (s *SharedMemoryStorage) For(visitorID string) Storage {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.scopes[visitorID]
	if !ok {
		st = NewMemoryStorage()
		s.scopes[visitorID] = st
	}
	return st
}
