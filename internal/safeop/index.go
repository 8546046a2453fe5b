package safeop

import (
	"database/sql"
	"time"
)

// ArtifactEntry is the sidecar metadata kept for each artifact.
type ArtifactEntry struct {
	BackupPath   string
	OriginalPath string
	CreatedAt    time.Time
	Size         int64 // bytes stored, after encryption
	Checksum     string
	Encrypted    bool
	RemovedAt    sql.NullTime
}

// Run is one invocation of a mutating command.
type Run struct {
	ID         int64
	RunID      string
	Command    string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
}

// Index stores artifact metadata keyed by artifact path, and the history
// of runs. The operation log stays the source of truth; the index exists so
// restore can find an artifact's original path without parsing its name.
type Index interface {
	// RecordArtifact inserts or replaces the entry for e.BackupPath.
	RecordArtifact(e *ArtifactEntry) error

	// FindArtifact returns the entry for backupPath, or nil if none exists.
	FindArtifact(backupPath string) (*ArtifactEntry, error)

	// MarkRemoved stamps the entry for backupPath as pruned.
	MarkRemoved(backupPath string, at time.Time) error

	// CreateRun starts a run record.
	CreateRun(runID, command, parameters string, at time.Time) (*Run, error)

	// FinishRun completes a run record.
	FinishRun(id int64, status string, at time.Time) error

	// ListRuns returns up to limit runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// BackupTo writes a consistent copy of the index to destPath.
	BackupTo(destPath string) error

	Close() error
}
