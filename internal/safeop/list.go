package safeop

import (
	"fmt"
	"path/filepath"
)

// List returns the logged operations in append order. With a non-empty
// rawPath, only records whose original or backup path is that file are
// returned. The file itself does not need to exist.
func (s *Service) List(rawPath string) ([]*BackupRecord, error) {
	records, skipped, err := s.log.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading operation log: %w", err)
	}
	if skipped > 0 {
		s.logger.Warn("skipped malformed log lines", "log", s.log.Path(), "count", skipped)
	}
	if rawPath == "" {
		return records, nil
	}

	path, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	var matched []*BackupRecord
	for _, rec := range records {
		if samePath(rec.OriginalPath, path) || samePath(rec.BackupPath, path) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// samePath reports whether a and b name the same location once cleaned.
// Relative paths are resolved against the working directory.
func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
