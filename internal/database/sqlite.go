package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"safeop/internal/database/migrations"
	"safeop/internal/safeop"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteIndex implements safeop.Index on a SQLite database.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// NewSQLiteIndex opens the index at path, creating it and applying pending
// migrations as needed. path can be a file path or ":memory:".
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	st, err := migrations.Status(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checking index schema: %w", err)
	}
	if st.Current > st.Latest {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, st.Err())
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating index: %w", err)
	}
	if err := migrations.Check(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteIndex{db: db, path: path}, nil
}

// NewSQLiteIndexFromDB wraps an existing, already migrated connection.
func NewSQLiteIndexFromDB(db *sql.DB) *SQLiteIndex {
	return &SQLiteIndex{db: db}
}

// OpenConnection opens and configures a SQLite connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A CLI invocation needs one connection, and each pooled connection to
	// ":memory:" would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Artifact operations

func (s *SQLiteIndex) RecordArtifact(e *safeop.ArtifactEntry) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT OR REPLACE INTO artifacts
			(backup_path, original_path, created_at, size, checksum, encrypted, removed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.BackupPath, e.OriginalPath, e.CreatedAt.UTC(), e.Size, e.Checksum, e.Encrypted, e.RemovedAt,
	)
	if err != nil {
		return fmt.Errorf("recording artifact: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) FindArtifact(backupPath string) (*safeop.ArtifactEntry, error) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT backup_path, original_path, created_at, size, checksum, encrypted, removed_at
		FROM artifacts WHERE backup_path = ?`, backupPath)

	var e safeop.ArtifactEntry
	err := row.Scan(&e.BackupPath, &e.OriginalPath, &e.CreatedAt, &e.Size, &e.Checksum, &e.Encrypted, &e.RemovedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding artifact: %w", err)
	}
	return &e, nil
}

func (s *SQLiteIndex) MarkRemoved(backupPath string, at time.Time) error {
	_, err := s.db.ExecContext(context.Background(),
		"UPDATE artifacts SET removed_at = ? WHERE backup_path = ?", at.UTC(), backupPath)
	if err != nil {
		return fmt.Errorf("marking artifact removed: %w", err)
	}
	return nil
}

// Run operations

func (s *SQLiteIndex) CreateRun(runID, command, parameters string, at time.Time) (*safeop.Run, error) {
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO runs (run_id, command, parameters, started_at, status) VALUES (?, ?, ?, ?, ?)",
		runID, command, parameters, at.UTC(), "running")
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return &safeop.Run{
		ID:         id,
		RunID:      runID,
		Command:    command,
		Parameters: parameters,
		StartedAt:  at.UTC(),
		Status:     "running",
	}, nil
}

func (s *SQLiteIndex) FinishRun(id int64, status string, at time.Time) error {
	_, err := s.db.ExecContext(context.Background(),
		"UPDATE runs SET finished_at = ?, status = ? WHERE id = ?",
		sql.NullTime{Time: at.UTC(), Valid: true}, status, id)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) ListRuns(limit int) ([]*safeop.Run, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, run_id, command, parameters, started_at, finished_at, status
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*safeop.Run
	for rows.Next() {
		var r safeop.Run
		if err := rows.Scan(&r.ID, &r.RunID, &r.Command, &r.Parameters, &r.StartedAt, &r.FinishedAt, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteIndex) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up index: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteIndex implements safeop.Index
var _ safeop.Index = (*SQLiteIndex)(nil)
