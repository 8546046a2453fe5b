// Package migrations owns the index schema. Migration files are embedded
// and applied with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

var (
	// ErrNoVersion means the database has never been migrated.
	ErrNoVersion = errors.New("index has no schema version")

	// ErrDirty means a previous migration stopped halfway.
	ErrDirty = errors.New("index schema is dirty")

	// ErrBehind means migrations are pending.
	ErrBehind = errors.New("index schema is out of date")

	// ErrAhead means the index was written by a newer build.
	ErrAhead = errors.New("index schema is newer than this build")
)

// SchemaStatus describes where a database stands relative to the embedded
// migrations. Current is 0 for a database that was never migrated.
type SchemaStatus struct {
	Current uint
	Latest  uint
	Dirty   bool
}

// Status reads the schema version of db and the latest embedded version.
func Status(db *sql.DB) (*SchemaStatus, error) {
	latest, err := LatestVersion()
	if err != nil {
		return nil, err
	}

	// The migrate instance is not closed: that would close db, which the
	// caller owns.
	m, err := newMigrate(db)
	if err != nil {
		return nil, err
	}

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("reading schema version: %w", err)
	}
	return &SchemaStatus{Current: current, Latest: latest, Dirty: dirty}, nil
}

// Check returns nil when db is exactly at the latest version, and an error
// wrapping one of ErrNoVersion, ErrDirty, ErrBehind or ErrAhead otherwise.
func Check(db *sql.DB) error {
	st, err := Status(db)
	if err != nil {
		return err
	}
	return st.Err()
}

// Err classifies the status as an error, or nil when up to date.
func (s *SchemaStatus) Err() error {
	switch {
	case s.Dirty:
		return fmt.Errorf("%w at version %d", ErrDirty, s.Current)
	case s.Current == 0:
		return ErrNoVersion
	case s.Current < s.Latest:
		return fmt.Errorf("%w: version %d, latest %d", ErrBehind, s.Current, s.Latest)
	case s.Current > s.Latest:
		return fmt.Errorf("%w: version %d, latest %d", ErrAhead, s.Current, s.Latest)
	}
	return nil
}

// Up applies all pending migrations. An up-to-date database is not an error.
func Up(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Down reverts every migration, leaving an empty schema.
func Down(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("reverting migrations: %w", err)
	}
	return nil
}

// LatestVersion returns the highest embedded migration version.
func LatestVersion() (uint, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, fmt.Errorf("reading migration files: %w", err)
	}
	defer src.Close()
	return lastVersion(src)
}

// Schema returns the CREATE statements of every table and index in db,
// tables first, excluding SQLite internals and the migration bookkeeping.
func Schema(db *sql.DB) (string, error) {
	rows, err := db.Query(`
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY CASE type WHEN 'table' THEN 1 ELSE 2 END, name`)
	if err != nil {
		return "", fmt.Errorf("querying schema: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scanning schema: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	return b.String(), nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("reading migration files: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// lastVersion walks the source to its final version; Next fails past the end.
func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no migrations embedded: %w", err)
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
