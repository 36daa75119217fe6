package testutil

import (
	"testing"

	"rr-sync/internal/database"
	"rr-sync/internal/sw"
)

// NewTestStore creates a new in-memory SQLite store with schema applied.
// The store is automatically closed when the test completes.
// A nil clock uses FixedClock.
func NewTestStore(t *testing.T, clock sw.Clock) *database.SQLiteStore {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	if clock == nil {
		clock = FixedClock()
	}
	store := database.NewSQLiteStoreFromDB(sqlDB, clock)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
