package database

import (
	"fmt"
	"os"
	"path/filepath"

	"rr-sync/internal/config"
	"rr-sync/internal/sw"
)

// StoreFileName is the SQLite file created under the configured data_dir.
const StoreFileName = "rrsync.db"

// NewStoreFromConfig creates the local store selected by the database config
// type and migrates it to the latest schema.
func NewStoreFromConfig(cfg config.DatabaseConfig, clock sw.Clock) (*SQLiteStore, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		path = filepath.Join(cfg.DataDir, StoreFileName)
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	store, err := NewSQLiteStore(path, clock)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return store, nil
}
