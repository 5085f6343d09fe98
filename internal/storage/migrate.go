package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var schema embed.FS

// SchemaStatus describes the migration state of a database.
type SchemaStatus struct {
	Version uint
	Dirty   bool
	// Latest is the highest version shipped in this binary.
	Latest uint
}

// Current reports whether every shipped migration has been applied cleanly.
func (s SchemaStatus) Current() bool {
	return !s.Dirty && s.Version == s.Latest
}

// openMigrator gives migrate a connection of its own; m.Close closes it.
func openMigrator(dsn string) (*migrate.Migrate, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(schema, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations brings the database at dsn up to the latest schema. A
// database left dirty by a failed run is reported, not retried.
func RunMigrations(dsn string) error {
	m, err := openMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	var dirty migrate.ErrDirty
	switch {
	case err == nil, errors.Is(err, migrate.ErrNoChange):
		return nil
	case errors.As(err, &dirty):
		return fmt.Errorf("schema version %d is dirty, fix the failed migration by hand", dirty.Version)
	default:
		return fmt.Errorf("apply migrations: %w", err)
	}
}

// SchemaStatus reads the applied migration version of the open database.
func (r *SQLiteRepository) SchemaStatus() (SchemaStatus, error) {
	latest, err := latestMigration()
	if err != nil {
		return SchemaStatus{}, err
	}
	m, err := openMigrator(r.dsn)
	if err != nil {
		return SchemaStatus{}, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return SchemaStatus{Latest: latest}, nil
	}
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("read schema version: %w", err)
	}
	return SchemaStatus{Version: version, Dirty: dirty, Latest: latest}, nil
}

func latestMigration() (uint, error) {
	src, err := iofs.New(schema, "migrations")
	if err != nil {
		return 0, fmt.Errorf("read embedded migrations: %w", err)
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("first migration: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("next migration after %d: %w", v, err)
		}
		v = next
	}
}
