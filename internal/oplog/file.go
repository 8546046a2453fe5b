package oplog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"safeop/internal/safeop"
)

// FileName is the log's name inside the backup root.
const FileName = "operations.jsonl"

// maxLineSize bounds a single record; comments are the only unbounded field.
// Append refuses larger records and ReadAll skips longer lines.
const maxLineSize = 1 << 20

// ErrRecordTooLarge is returned by Append for a record over maxLineSize.
var ErrRecordTooLarge = errors.New("log record too large")

// FileLog is an append-only JSON-lines file.
//
// Each record is written with a single write on a descriptor opened with
// O_APPEND and synced before Append returns, so concurrent writers never
// interleave within a line.
type FileLog struct {
	path string
}

// NewFileLog creates a log at path. The file and its directory are created
// on first append.
func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

func (l *FileLog) Path() string {
	return l.path
}

func (l *FileLog) Append(rec *safeop.BackupRecord) error {
	line, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if len(line) > maxLineSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrRecordTooLarge, len(line), maxLineSize)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("writing log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing log: %w", err)
	}
	return f.Close()
}

func (l *FileLog) ReadAll() ([]*safeop.BackupRecord, int, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	var records []*safeop.BackupRecord
	skipped := 0

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if len(line) > maxLineSize+1 {
				skipped++
			} else if rec, decErr := decodeLine(line); decErr != nil {
				skipped++
			} else if rec != nil {
				records = append(records, rec)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, skipped, fmt.Errorf("reading log: %w", err)
		}
	}

	return records, skipped, nil
}

// Compile-time check that FileLog implements safeop.OperationLog
var _ safeop.OperationLog = (*FileLog)(nil)
