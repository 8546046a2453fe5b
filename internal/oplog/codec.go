package oplog

import (
	"bytes"

	"github.com/goccy/go-json"

	"safeop/internal/safeop"
)

// encodeRecord renders rec as a single JSON line including the trailing newline.
func encodeRecord(rec *safeop.BackupRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// decodeLine parses one log line. Blank lines return (nil, nil).
func decodeLine(line []byte) (*safeop.BackupRecord, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}
	var rec safeop.BackupRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
