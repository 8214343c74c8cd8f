package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// ErrVersionAhead is returned when the database schema is newer than this
// binary's migrations. The caller should warn and proceed read-compatible
// rather than fail; the migrator never modifies a future schema.
var ErrVersionAhead = errors.New("database schema is ahead of binary")

// MigrateUp brings the database to the latest schema version. Running it
// again is a no-op; it is append-only and never destructive. A database
// whose version is ahead of the binary returns ErrVersionAhead untouched.
func MigrateUp(db *sql.DB) error {
	m, latest, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: we don't close m because it would close the db connection.
	// The caller owns the db and is responsible for closing it.

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get database version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", version)
	}
	if err == nil && version > latest {
		return fmt.Errorf("%w: database at %d, binary at %d", ErrVersionAhead, version, latest)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Status verifies the database schema is up to date. Returns nil at the
// latest version, ErrVersionAhead (wrapped) for a future schema, and a
// descriptive error for anything behind or dirty.
func Status(db *sql.DB) error {
	m, latest, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (needs migration)")
		}
		return fmt.Errorf("failed to get database version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", version)
	}
	if version < latest {
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			version, latest, latest-version)
	}
	if version > latest {
		return fmt.Errorf("%w: database at %d, binary at %d", ErrVersionAhead, version, latest)
	}
	return nil
}

// newMigrate creates a migrate instance for the given database and returns
// the latest version available in the embedded source.
func newMigrate(db *sql.DB) (*migrate.Migrate, uint, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create source driver: %w", err)
	}

	latest, err := latestVersion(sourceDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, 0, fmt.Errorf("failed to determine latest version: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, 0, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, latest, nil
}

// latestVersion returns the highest version number available in the source.
func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			// Any error from Next means we've reached the end.
			break
		}
		version = next
	}
	return version, nil
}
