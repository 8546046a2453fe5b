package safeop

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// sniffLen is how many leading bytes are inspected to detect encryption.
const sniffLen = 64

// RestoreOptions tunes a single restore.
type RestoreOptions struct {
	// Target is the destination. When empty, the original path recorded
	// for the artifact is used.
	Target string

	// Passphrase is consulted only when the artifact is encrypted.
	Passphrase PassphraseFunc
}

// Restore copies an artifact's content over its destination and logs the
// operation. The destination is overwritten without confirmation and is
// not backed up first. It returns the absolute path written.
func (s *Service) Restore(rawBackupPath string, opts RestoreOptions) (string, error) {
	backupPath, err := filepath.Abs(rawBackupPath)
	if err != nil {
		return "", fmt.Errorf("resolving backup path: %w", err)
	}

	if _, err := s.ensureArtifact(backupPath); err != nil {
		return "", err
	}

	entry, err := s.index.FindArtifact(backupPath)
	if err != nil {
		s.logger.Warn("index lookup failed", "backup", backupPath, "error", err)
		entry = nil
	}

	target, err := s.resolveTarget(backupPath, opts.Target, entry)
	if err != nil {
		return "", err
	}

	encrypted := entry != nil && entry.Encrypted
	err = writeTarget(target, func(w io.Writer) error {
		return s.copyPlaintext(backupPath, encrypted, opts.Passphrase, w)
	})
	if err != nil {
		return "", fmt.Errorf("restoring %s: %w", target, err)
	}

	rec := &BackupRecord{
		ID:           s.idgen.New(),
		OriginalPath: target,
		BackupPath:   backupPath,
		Operation:    OperationRestore,
	}
	if err := s.appendRecord(rec); err != nil {
		return "", fmt.Errorf("recording restore: %w", err)
	}

	s.logger.Info("file restored", "backup", backupPath, "path", target)
	return target, nil
}

// ensureArtifact stats the artifact, fetching it from the mirror when it
// is missing locally and a mirror is configured.
func (s *Service) ensureArtifact(backupPath string) (*Artifact, error) {
	artifact, err := s.store.Stat(backupPath)
	if err == nil {
		return artifact, nil
	}
	if !errors.Is(err, ErrNotFound) || s.mirror == nil || filepath.Dir(backupPath) != s.store.Root() {
		return nil, err
	}

	name := filepath.Base(backupPath)
	artifact, getErr := s.store.Put(name, func(w io.Writer) error {
		return s.mirror.Get(name, w)
	})
	if getErr != nil {
		if errors.Is(getErr, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching %s from mirror: %w", name, getErr)
	}
	s.logger.Info("backup fetched from mirror", "backup", backupPath)
	return artifact, nil
}

// resolveTarget picks the restore destination: the explicit target, then
// the indexed original path, then the newest backup record for the
// artifact, and finally the path derived from the artifact's name.
func (s *Service) resolveTarget(backupPath, explicit string, entry *ArtifactEntry) (string, error) {
	if explicit != "" {
		target, err := filepath.Abs(explicit)
		if err != nil {
			return "", fmt.Errorf("resolving target: %w", err)
		}
		return target, nil
	}

	if entry != nil && entry.OriginalPath != "" {
		return entry.OriginalPath, nil
	}

	rec, err := s.findBackupRecord(backupPath)
	if err != nil {
		return "", err
	}
	if rec != nil {
		return rec.OriginalPath, nil
	}

	derived := DeriveOriginalPath(s.store.Root(), backupPath)
	target, err := filepath.Abs(derived)
	if err != nil {
		return "", fmt.Errorf("resolving derived target: %w", err)
	}
	s.logger.Warn("no recorded original path, derived from artifact name", "backup", backupPath, "target", target)
	return target, nil
}

// findBackupRecord returns the most recent backup record for backupPath, or nil.
func (s *Service) findBackupRecord(backupPath string) (*BackupRecord, error) {
	records, _, err := s.log.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading operation log: %w", err)
	}
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.Operation == OperationBackup && samePath(rec.BackupPath, backupPath) {
			return rec, nil
		}
	}
	return nil, nil
}

// copyPlaintext writes the artifact's original bytes to w, decrypting
// if the artifact is encrypted. encrypted may be false when nothing is
// known about the artifact; the content header is checked as well.
func (s *Service) copyPlaintext(backupPath string, encrypted bool, passphrase PassphraseFunc, w io.Writer) error {
	f, err := s.store.Open(backupPath)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if !encrypted && s.encryptor != nil {
		prefix, _ := br.Peek(sniffLen)
		encrypted = s.encryptor.Encrypted(prefix)
	}

	if !encrypted {
		if _, err := io.Copy(w, br); err != nil {
			return fmt.Errorf("copying backup: %w", err)
		}
		return nil
	}

	dc, err := s.unlock(passphrase)
	if err != nil {
		return err
	}
	if err := dc.Decrypt(br, w); err != nil {
		return fmt.Errorf("decrypting backup: %w", err)
	}
	return nil
}

// unlock returns the decryption context, unlocking the key on first use.
func (s *Service) unlock(passphrase PassphraseFunc) (DecryptionContext, error) {
	if s.decrypt != nil {
		return s.decrypt, nil
	}
	if s.encryptor == nil {
		return nil, fmt.Errorf("backup is encrypted but no encryption is configured")
	}
	if passphrase == nil {
		return nil, ErrPassphraseRequired
	}
	pass, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	dc, err := s.encryptor.Unlock(pass)
	if err != nil {
		return nil, fmt.Errorf("unlocking private key: %w", err)
	}
	s.decrypt = dc
	return dc, nil
}

// writeTarget replaces target with the bytes produced by write. The new
// content goes to a temp file in the same directory and is renamed into
// place, so a failed restore leaves the previous content intact. Existing
// permissions are kept; symlinks are followed.
func writeTarget(target string, write WriteFunc) error {
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		target = resolved
	}

	mode := fs.FileMode(0644)
	if info, err := os.Stat(target); err == nil {
		if !info.Mode().IsRegular() {
			return fmt.Errorf("target is not a regular file: %s", target)
		}
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".safeop-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("replacing target: %w", err)
	}

	success = true
	return nil
}
