package safeop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// VerifyResult reports the outcome of checking an artifact.
type VerifyResult struct {
	BackupPath string
	Expected   string
	Actual     string
}

// Verify recomputes the checksum of an artifact's original bytes and
// compares it with the checksum recorded when the artifact was written.
// A mismatch returns the result together with an error wrapping
// ErrChecksumMismatch.
func (s *Service) Verify(rawBackupPath string, passphrase PassphraseFunc) (*VerifyResult, error) {
	backupPath, err := filepath.Abs(rawBackupPath)
	if err != nil {
		return nil, fmt.Errorf("resolving backup path: %w", err)
	}
	if _, err := s.store.Stat(backupPath); err != nil {
		return nil, err
	}

	result := &VerifyResult{BackupPath: backupPath}
	encrypted := false

	entry, err := s.index.FindArtifact(backupPath)
	if err != nil {
		s.logger.Warn("index lookup failed", "backup", backupPath, "error", err)
	} else if entry != nil {
		result.Expected = entry.Checksum
		encrypted = entry.Encrypted
	}
	if result.Expected == "" {
		rec, err := s.findBackupRecord(backupPath)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			result.Expected = rec.Checksum
		}
	}
	if result.Expected == "" {
		return nil, fmt.Errorf("no checksum recorded for %s", backupPath)
	}

	hasher := sha256.New()
	if err := s.copyPlaintext(backupPath, encrypted, passphrase, hasher); err != nil {
		return nil, err
	}
	result.Actual = hex.EncodeToString(hasher.Sum(nil))

	if result.Actual != result.Expected {
		return result, fmt.Errorf("%w: %s", ErrChecksumMismatch, backupPath)
	}
	s.logger.Debug("backup verified", "backup", backupPath)
	return result, nil
}
