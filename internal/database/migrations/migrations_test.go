package migrations_test

import (
	"path/filepath"
	"testing"

	"driftfs/internal/database"
	"driftfs/internal/database/migrations"
)

func openTestDB(t *testing.T) *database.SQLiteStore {
	t.Helper()
	store, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	store := openTestDB(t)

	if err := migrations.MigrateUp(store.DB()); err != nil {
		t.Fatalf("first MigrateUp: %v", err)
	}
	if err := migrations.MigrateUp(store.DB()); err != nil {
		t.Fatalf("second MigrateUp: %v", err)
	}
}

func TestStatusAfterMigration(t *testing.T) {
	store := openTestDB(t)

	// A fresh database is behind.
	if err := migrations.Status(store.DB()); err == nil {
		t.Error("Status on unmigrated database returned nil")
	}

	if err := migrations.MigrateUp(store.DB()); err != nil {
		t.Fatal(err)
	}
	if err := migrations.Status(store.DB()); err != nil {
		t.Errorf("Status after MigrateUp: %v", err)
	}
}

func TestMigratedSchemaIsUsable(t *testing.T) {
	store := openTestDB(t)
	if err := migrations.MigrateUp(store.DB()); err != nil {
		t.Fatal(err)
	}

	if _, err := store.UpsertUser("alice", nil); err != nil {
		t.Errorf("schema missing users table: %v", err)
	}
	if err := store.SetSetting("k", "v"); err != nil {
		t.Errorf("schema missing settings table: %v", err)
	}
}
