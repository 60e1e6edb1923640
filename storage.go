package main

import (
	"fmt"

	"github.com/Seednode/undercover/internal/store"
	"github.com/Seednode/undercover/internal/store/bbolt"
	"github.com/Seednode/undercover/internal/store/memory"
	"github.com/Seednode/undercover/internal/store/sqlstore"
)

func openSnapshots(cfg *Config) (*store.Snapshots, error) {
	var backend store.Backend

	switch cfg.store {
	case storeBolt:
		s, err := bbolt.Open(cfg.storePath)
		if err != nil {
			return nil, err
		}
		backend = s
	case storeSQLite:
		s, err := sqlstore.Open(sqlstore.DriverSQLite, cfg.storePath)
		if err != nil {
			return nil, err
		}
		backend = s
	case storePostgres:
		s, err := sqlstore.Open(sqlstore.DriverPostgres, cfg.storePath)
		if err != nil {
			return nil, err
		}
		backend = s
	case storeMemory:
		backend = memory.New()
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.store)
	}

	logf(cfg, "STORE: Using %s snapshot store", cfg.store)

	return store.NewSnapshots(backend), nil
}
