package safeop

import "fmt"

// GetHistory returns up to limit runs, newest first.
func (s *Service) GetHistory(limit int) ([]*Run, error) {
	if limit <= 0 {
		return nil, Usagef("limit must be positive: %d", limit)
	}
	runs, err := s.index.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}
