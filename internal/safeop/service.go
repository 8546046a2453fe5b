package safeop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
)

// Service is the backup store: it copies files into the artifact store,
// records each operation in the log, restores copies and prunes old ones.
type Service struct {
	log       OperationLog
	store     ArtifactStore
	index     Index
	fsmgr     FilesystemManager
	encryptor Encryptor
	mirror    Mirror
	logger    Logger
	clock     Clock
	idgen     IDGenerator

	decrypt DecryptionContext // unlocked on first use
}

// NewService creates a Service. encryptor and mirror are optional and may
// be nil; every other dependency is required.
func NewService(log OperationLog, store ArtifactStore, index Index, fsmgr FilesystemManager, encryptor Encryptor, mirror Mirror, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		log:       log,
		store:     store,
		index:     index,
		fsmgr:     fsmgr,
		encryptor: encryptor,
		mirror:    mirror,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// BackupOptions tunes a single backup.
type BackupOptions struct {
	// MaxBackups, when positive, prunes the file's artifacts down to this
	// many immediately after the backup. Zero disables pruning.
	MaxBackups int

	// Comment is stored verbatim in the log record.
	Comment string
}

// Backup copies the file at rawPath into the store and logs the operation.
// It returns the absolute path of the new artifact.
//
// The artifact is complete on disk before its record is appended. If the
// append fails the artifact is removed again, so the log never references
// a file that was not written.
func (s *Service) Backup(rawPath string, opts BackupOptions) (string, error) {
	if opts.MaxBackups < 0 {
		return "", Usagef("max backups must not be negative: %d", opts.MaxBackups)
	}

	path, err := s.fsmgr.Resolve(rawPath)
	if err != nil {
		return "", err
	}
	if !path.IsRegular() {
		return "", fmt.Errorf("not a regular file: %s", path.String())
	}

	src, err := s.fsmgr.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	hasher := sha256.New()
	r := io.TeeReader(src, hasher)
	artifact, err := s.store.Create(filepath.Base(path.String()), s.clock.Now(), func(w io.Writer) error {
		if s.encryptor != nil {
			return s.encryptor.Encrypt(r, w)
		}
		_, err := io.Copy(w, r)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))

	rec := &BackupRecord{
		ID:           s.idgen.New(),
		OriginalPath: path.String(),
		BackupPath:   artifact.Path,
		Operation:    OperationBackup,
		Comment:      opts.Comment,
		Checksum:     checksum,
	}
	if err := s.appendRecord(rec); err != nil {
		if rmErr := s.store.Remove(artifact.Path); rmErr != nil {
			s.logger.Error("removing unrecorded backup failed", "backup", artifact.Path, "error", rmErr)
		}
		return "", fmt.Errorf("recording backup: %w", err)
	}
	s.logger.Info("file backed up", "path", path.String(), "backup", artifact.Path)

	entry := &ArtifactEntry{
		BackupPath:   artifact.Path,
		OriginalPath: path.String(),
		CreatedAt:    rec.Timestamp,
		Size:         artifact.Size,
		Checksum:     checksum,
		Encrypted:    s.encryptor != nil,
	}
	if err := s.index.RecordArtifact(entry); err != nil {
		s.logger.Warn("indexing backup failed", "backup", artifact.Path, "error", err)
	}
	s.mirrorPut(artifact)

	if opts.MaxBackups > 0 {
		if _, err := s.Clean(path.String(), opts.MaxBackups); err != nil {
			return artifact.Path, fmt.Errorf("pruning old backups: %w", err)
		}
	}

	return artifact.Path, nil
}

// appendRecord stamps rec with the write time and appends it to the log.
func (s *Service) appendRecord(rec *BackupRecord) error {
	rec.Timestamp = s.clock.Now().UTC()
	return s.log.Append(rec)
}

func (s *Service) mirrorPut(artifact *Artifact) {
	if s.mirror == nil {
		return
	}
	f, err := s.store.Open(artifact.Path)
	if err != nil {
		s.logger.Warn("mirror upload skipped", "backup", artifact.Path, "error", err)
		return
	}
	defer f.Close()

	if err := s.mirror.Put(artifact.Name, f, artifact.Size); err != nil {
		s.logger.Warn("mirror upload failed", "backup", artifact.Path, "error", err)
		return
	}
	s.logger.Debug("backup mirrored", "key", artifact.Name)
}
