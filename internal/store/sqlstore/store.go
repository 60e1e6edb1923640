/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package sqlstore provides a database/sql snapshot store for SQLite and
// PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Seednode/undercover/internal/store"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at BIGINT NOT NULL
)`

const upsertSnapshot = `INSERT INTO snapshots (id, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

const selectSnapshot = `SELECT data FROM snapshots WHERE id = ?`

type Store struct {
	db     *sql.DB
	upsert string
	query  string
}

// Open connects to dsn with the given driver and creates the schema.
func Open(driver, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if driver == DriverSQLite {
		// one connection keeps :memory: databases shared and writes serialized
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{
		db:     db,
		upsert: upsertSnapshot,
		query:  selectSnapshot,
	}

	if driver == DriverPostgres {
		s.upsert = rebind(s.upsert)
		s.query = rebind(s.query)
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
	if key == "" {
		return fmt.Errorf("snapshot key is required")
	}

	_, err := s.db.ExecContext(ctx, s.upsert, key, string(data), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data string

	err := s.db.QueryRowContext(ctx, s.query, key).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("select snapshot: %w", err)
	}

	return []byte(data), nil
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func rebind(query string) string {
	var b strings.Builder

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
