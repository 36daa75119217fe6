package database

import (
	"os"
	"path/filepath"
	"testing"

	"rr-sync/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory database", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "memory"}
		got, err := NewStoreFromConfig(cfg, nil)
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("sqlite database", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "db")
		cfg := config.DatabaseConfig{Type: "sqlite", DataDir: dir}
		got, err := NewStoreFromConfig(cfg, nil)
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if got.Path() != filepath.Join(dir, StoreFileName) {
			t.Errorf("Path() = %q, want %q", got.Path(), filepath.Join(dir, StoreFileName))
		}
		if _, err := os.Stat(got.Path()); err != nil {
			t.Errorf("store file not created: %v", err)
		}
	})

	t.Run("sqlite database reopened keeps schema", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()}
		first, err := NewStoreFromConfig(cfg, nil)
		if err != nil {
			t.Fatalf("first NewStoreFromConfig() error = %v", err)
		}
		first.Close()

		second, err := NewStoreFromConfig(cfg, nil)
		if err != nil {
			t.Fatalf("second NewStoreFromConfig() error = %v", err)
		}
		defer second.Close()
		if err := second.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("sqlite database without data_dir", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite"}
		got, err := NewStoreFromConfig(cfg, nil)

		if err == nil {
			t.Error("NewStoreFromConfig() expected error for missing data_dir, got nil")
		}
		if got != nil {
			t.Error("NewStoreFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("unknown database type", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "unknown"}
		got, err := NewStoreFromConfig(cfg, nil)

		if err == nil {
			t.Error("NewStoreFromConfig() expected error for unknown type, got nil")
		}
		if got != nil {
			t.Error("NewStoreFromConfig() should return nil on error")
			got.Close()
		}
	})
}
