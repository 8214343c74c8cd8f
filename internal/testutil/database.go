package testutil

import (
	"path/filepath"
	"testing"

	"driftfs/internal/database"
	"driftfs/internal/database/migrations"
)

// NewTestStore creates a throwaway SQLite metadata store with the full
// schema applied via the real migrations. Closed when the test completes.
// Backed by a per-test temp file rather than ":memory:" because database/sql
// pools connections and each new connection to ":memory:" sees an empty
// database.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	store, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := migrations.MigrateUp(store.DB()); err != nil {
		store.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})
	return store
}
