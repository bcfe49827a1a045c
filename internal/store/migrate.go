package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus holds information about database migration state.
type MigrationStatus struct {
	CurrentVersion uint
	LatestVersion  uint
	Dirty          bool
	Pending        bool
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func migrationStatus(db *sql.DB) (*MigrationStatus, error) {
	m, err := newMigrator(db)
	if err != nil {
		return nil, err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("read migration version: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	var latest uint
	if first, err := source.First(); err == nil {
		latest = first
		for {
			next, err := source.Next(latest)
			if err != nil {
				break
			}
			latest = next
		}
	}

	return &MigrationStatus{
		CurrentVersion: version,
		LatestVersion:  latest,
		Dirty:          dirty,
		Pending:        version < latest,
	}, nil
}
