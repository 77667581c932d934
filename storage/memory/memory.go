// Package memory provides an in-memory implementation of the
// gomonetize.Storage interface. This implementation is primarily intended for
// testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/mihaimyh/gomonetize/pkg/gomonetize"
)

// Storage implements gomonetize.Storage using an in-memory map.
type Storage struct {
	mu   sync.RWMutex
	data map[string]string
}

// New creates a new in-memory storage adapter.
func New() *Storage {
	return &Storage{data: make(map[string]string)}
}

// Get implements gomonetize.Storage.
func (s *Storage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return "", gomonetize.ErrKeyNotFound
	}
	return value, nil
}

// Set implements gomonetize.Storage.
func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// Delete implements gomonetize.Storage. Deleting an absent key is not an
// error.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}
