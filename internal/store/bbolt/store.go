/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package bbolt provides a BoltDB-backed snapshot store.
package bbolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Seednode/undercover/internal/store"
	"go.etcd.io/bbolt"
)

const snapshotBucket = "snapshots"

type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("snapshot key is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		return bucket.Put([]byte(key), data)
	})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}

		payload := bucket.Get([]byte(key))
		if payload == nil {
			return store.ErrNotFound
		}

		// payload is only valid for the life of the transaction
		data = append([]byte(nil), payload...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(snapshotBucket)); err != nil {
			return fmt.Errorf("create snapshot bucket: %w", err)
		}
		return nil
	})
}
