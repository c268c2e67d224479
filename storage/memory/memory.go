// Package memory provides an in-memory implementation of the kv.Store interface.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/mihaimyh/promptstudio/pkg/kv"
)

// Storage implements kv.Store using an in-memory map.
type Storage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates a new in-memory storage adapter.
func New() *Storage {
	return &Storage{
		data: make(map[string][]byte),
	}
}

// Get implements kv.Store
func (s *Storage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, kv.ErrNotFound
	}

	// Return a copy to prevent external mutations
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set implements kv.Store
func (s *Storage) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = v
	return nil
}

// Delete implements kv.Store
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns the stored keys in no particular order.
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}
