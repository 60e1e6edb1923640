/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package store persists game snapshots.
//
// Backends only move opaque bytes around; Snapshots handles encoding and
// validation of game state on top of any Backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Seednode/undercover/internal/game"
)

// SnapshotKey prefixes the key every game snapshot is stored under.
const SnapshotKey = "undercover_state"

// ErrNotFound indicates no snapshot exists for a key.
var ErrNotFound = errors.New("snapshot not found")

// Backend stores raw snapshots by key.
type Backend interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// Key returns the snapshot key for a game session.
func Key(session string) string {
	return SnapshotKey + "/" + session
}

type Snapshots struct {
	backend Backend
}

func NewSnapshots(backend Backend) *Snapshots {
	return &Snapshots{backend: backend}
}

func (s *Snapshots) Save(ctx context.Context, key string, state game.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.backend.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put snapshot %s: %w", key, err)
	}

	return nil
}

// Load returns the snapshot stored under key. Any error means there is no
// usable snapshot and the caller should keep its defaults.
func (s *Snapshots) Load(ctx context.Context, key string) (game.State, error) {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return game.State{}, err
	}

	var state game.State
	if err := json.Unmarshal(data, &state); err != nil {
		return game.State{}, fmt.Errorf("unmarshal snapshot %s: %w", key, err)
	}

	if err := state.Validate(); err != nil {
		return game.State{}, fmt.Errorf("snapshot %s: %w", key, err)
	}

	return state, nil
}

func (s *Snapshots) Close() error {
	return s.backend.Close()
}
