package oplog

import (
	"fmt"
	"sync"

	"safeop/internal/safeop"
)

// MemoryLog keeps encoded lines in memory. Records go through the same
// codec as FileLog, so tests observe the same field handling.
// This implementation is safe for concurrent use.
type MemoryLog struct {
	mu    sync.Mutex
	lines [][]byte
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Path() string {
	return "memory"
}

func (m *MemoryLog) Append(rec *safeop.BackupRecord) error {
	line, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, line)
	return nil
}

// AppendRaw adds an arbitrary line, e.g. to simulate a corrupted log.
func (m *MemoryLog) AppendRaw(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, []byte(line+"\n"))
}

// Len returns the number of lines written, including malformed ones.
func (m *MemoryLog) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines)
}

func (m *MemoryLog) ReadAll() ([]*safeop.BackupRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []*safeop.BackupRecord
	skipped := 0
	for _, line := range m.lines {
		rec, err := decodeLine(line)
		if err != nil {
			skipped++
			continue
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, skipped, nil
}

var _ safeop.OperationLog = (*MemoryLog)(nil)
