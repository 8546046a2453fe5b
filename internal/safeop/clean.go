package safeop

import (
	"fmt"
	"path/filepath"
)

// Clean deletes all but the keep most recent artifacts of the file at
// rawPath and returns the paths it removed, oldest last. Artifacts belong
// to a file when their name decodes to the file's base name. Log records
// are left untouched. keep == 0 removes every artifact of the file.
func (s *Service) Clean(rawPath string, keep int) ([]string, error) {
	if keep < 0 {
		return nil, Usagef("keep must not be negative: %d", keep)
	}

	path, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	base := filepath.Base(path)

	artifacts, err := s.store.List(base)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	if len(artifacts) <= keep {
		return nil, nil
	}

	now := s.clock.Now().UTC()
	var removed []string
	for _, a := range artifacts[keep:] {
		if err := s.store.Remove(a.Path); err != nil {
			return removed, fmt.Errorf("removing %s: %w", a.Path, err)
		}
		removed = append(removed, a.Path)
		s.logger.Info("old backup removed", "backup", a.Path)

		if err := s.index.MarkRemoved(a.Path, now); err != nil {
			s.logger.Warn("updating index failed", "backup", a.Path, "error", err)
		}
		if s.mirror != nil {
			if err := s.mirror.Delete(a.Name); err != nil {
				s.logger.Warn("mirror delete failed", "key", a.Name, "error", err)
			}
		}
	}
	return removed, nil
}
