package migrations

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	tables := []string{"artifacts", "runs", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("First Up() failed: %v", err)
	}
	if err := Up(db); err != nil {
		t.Errorf("Second Up() failed: %v", err)
	}
	if err := Check(db); err != nil {
		t.Errorf("Check() after double migration returned error: %v", err)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, db *sql.DB)
		wantErr error
	}{
		{
			name:    "fresh database",
			prepare: func(t *testing.T, db *sql.DB) {},
			wantErr: ErrNoVersion,
		},
		{
			name:    "migrated database",
			prepare: func(t *testing.T, db *sql.DB) { mustUp(t, db) },
		},
		{
			name: "dirty database",
			prepare: func(t *testing.T, db *sql.DB) {
				mustUp(t, db)
				mustExec(t, db, "UPDATE schema_migrations SET dirty = 1")
			},
			wantErr: ErrDirty,
		},
		{
			name: "database from a newer build",
			prepare: func(t *testing.T, db *sql.DB) {
				mustUp(t, db)
				mustExec(t, db, "UPDATE schema_migrations SET version = 999")
			},
			wantErr: ErrAhead,
		},
		{
			name: "database behind",
			prepare: func(t *testing.T, db *sql.DB) {
				mustUp(t, db)
				mustExec(t, db, "UPDATE schema_migrations SET version = 1")
			},
			wantErr: ErrBehind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			defer db.Close()
			tt.prepare(t, db)

			err := Check(db)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Check() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() failed: %v", err)
	}
	if latest != 2 {
		t.Errorf("LatestVersion() = %d, want 2", latest)
	}

	st, err := Status(db)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if st.Current != 0 || st.Latest != latest || st.Dirty {
		t.Errorf("Status() before migration = %+v", st)
	}

	mustUp(t, db)
	st, err = Status(db)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if st.Current != latest {
		t.Errorf("Status().Current = %d, want %d", st.Current, latest)
	}
}

func TestSchema(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	mustUp(t, db)

	schema, err := Schema(db)
	if err != nil {
		t.Fatalf("Schema() failed: %v", err)
	}

	artifacts := strings.Index(schema, "CREATE TABLE artifacts")
	runs := strings.Index(schema, "CREATE TABLE runs")
	index := strings.Index(schema, "CREATE INDEX idx_artifacts_original_path")
	if artifacts < 0 || runs < 0 || index < 0 {
		t.Fatalf("Schema() missing statements:\n%s", schema)
	}
	if index < runs {
		t.Error("Schema() lists indexes before tables")
	}
	if strings.Contains(schema, "schema_migrations") {
		t.Error("Schema() includes migration bookkeeping")
	}
}

func TestDown_DropsTables(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}
	if err := Down(db); err != nil {
		t.Fatalf("Down() failed: %v", err)
	}

	for _, table := range []string{"artifacts", "runs"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != sql.ErrNoRows {
			t.Errorf("Table %s still exists after Down (err = %v)", table, err)
		}
	}
}

func TestSchema_ArtifactPathUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	insert := `INSERT INTO artifacts (backup_path, original_path, created_at, size, checksum)
		VALUES ('/b/a.txt.2024-01-15T10-30-00.bak', '/a.txt', datetime('now'), 1, 'abc')`
	if _, err := db.Exec(insert); err != nil {
		t.Fatalf("Failed to insert artifact: %v", err)
	}
	if _, err := db.Exec(insert); err == nil {
		t.Error("Expected primary key violation for duplicate backup_path, but insert succeeded")
	}
}

func TestSchema_RunDefaults(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	_, err := db.Exec("INSERT INTO runs (run_id, command, started_at) VALUES ('r-1', 'backup', datetime('now'))")
	if err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}

	var status string
	if err := db.QueryRow("SELECT status FROM runs WHERE run_id = 'r-1'").Scan(&status); err != nil {
		t.Fatalf("Failed to read run: %v", err)
	}
	if status != "running" {
		t.Errorf("status = %q, want %q", status, "running")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every pooled connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}

func mustUp(t *testing.T, db *sql.DB) {
	t.Helper()
	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
