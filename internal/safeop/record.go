package safeop

import "time"

// Operation tags which action produced a BackupRecord.
type Operation string

const (
	OperationBackup  Operation = "backup"
	OperationRestore Operation = "restore"
)

// BackupRecord is one line of the operation log.
//
// Timestamp is stamped when the record is written, which can be slightly
// later than the timestamp embedded in the artifact name. ID and Checksum
// are absent from logs written by older versions of the tool.
type BackupRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	OriginalPath string    `json:"originalPath"`
	BackupPath   string    `json:"backupPath"`
	Operation    Operation `json:"operation"`
	Comment      string    `json:"comment,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	ID           string    `json:"id,omitempty"`
}

// OperationLog is the append-only record of every backup and restore.
// Records are never rewritten or removed, including when the artifacts
// they reference are pruned.
type OperationLog interface {
	// Append durably writes rec as the last record of the log.
	Append(rec *BackupRecord) error

	// ReadAll returns every record in append order. A log that does not
	// exist yet is empty, not an error. Lines that cannot be decoded are
	// skipped and counted in skipped.
	ReadAll() (records []*BackupRecord, skipped int, err error)

	// Path returns the log's location, for display.
	Path() string
}
