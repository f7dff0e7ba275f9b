package db

import (
	"context"
	"sync"

	"wpre/internal/types"
)

// MemoryStore is the process-local store used when no DATABASE_URL is set.
// State is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	params   types.Parameters
	defaults types.Parameters
	errors   []string
}

// NewMemoryStore creates a store seeded with defaults.
func NewMemoryStore(defaults types.Parameters) *MemoryStore {
	return &MemoryStore{
		params:   cloneParams(defaults),
		defaults: cloneParams(defaults),
	}
}

func (s *MemoryStore) Load(_ context.Context) (types.Parameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneParams(s.params), nil
}

func (s *MemoryStore) Save(_ context.Context, params types.Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = cloneParams(params)
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = cloneParams(s.defaults)
	return nil
}

func (s *MemoryStore) RecordError(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, message)
	return nil
}

// Errors returns a copy of every recorded message in insertion order.
func (s *MemoryStore) Errors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.errors))
	copy(out, s.errors)
	return out
}
