package state

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var errNotOpened = errors.New("database not opened")

// newMigrator builds a goose provider over the embedded migrations. The
// provider keeps no package-level state, so stores opened concurrently in
// tests do not race on goose globals.
func newMigrator(db *sql.DB) (*goose.Provider, error) {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return p, nil
}

// Migrate applies every pending migration to the open database.
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return errNotOpened
	}
	return MigrateWithDB(s.db)
}

// MigrateWithDB applies pending migrations to db.
func MigrateWithDB(db *sql.DB) error {
	p, err := newMigrator(db)
	if err != nil {
		return err
	}
	if _, err := p.Up(ctx()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// GetMigrationVersion returns the schema version recorded in the database.
func (s *SQLiteStore) GetMigrationVersion() (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}
	p, err := newMigrator(s.db)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx())
}
