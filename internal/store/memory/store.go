// Package memory provides an in-process snapshot store. Snapshots are lost
// when the process exits.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/Seednode/undercover/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func New() *Store {
	return &Store{
		snapshots: make(map[string][]byte),
	}
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = slices.Clone(data)

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.snapshots[key]
	if !ok {
		return nil, store.ErrNotFound
	}

	return slices.Clone(data), nil
}

func (s *Store) Close() error {
	return nil
}
