package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"safeop/internal/config"
	"safeop/internal/database"
	"safeop/internal/encryption"
	"safeop/internal/fs"
	"safeop/internal/lock"
	"safeop/internal/mirror"
	"safeop/internal/oplog"
	"safeop/internal/safeop"
	"safeop/internal/store"
)

// IndexMirrorKey is where Close uploads the index snapshot after a
// mutating run when a mirror is configured.
const IndexMirrorKey = "index/" + database.IndexFileName

// readOnlyCommands never write to the backup root. They must keep working
// when the root is missing or not writable.
var readOnlyCommands = map[string]bool{
	"list":    true,
	"verify":  true,
	"history": true,
}

// Options adjusts how the app is wired for one invocation.
type Options struct {
	// Root overrides the configured backup root.
	Root string

	// Verbose mirrors log lines to Stderr.
	Verbose bool

	// Stderr receives verbose log lines and passphrase prompts. Defaults to os.Stderr.
	Stderr io.Writer

	// Passphrase obtains the passphrase for encrypted artifacts. Defaults
	// to PromptPassphrase.
	Passphrase safeop.PassphraseFunc
}

// SafeOpApp is the application layer between the CLI and safeop.Service.
// It constructs all dependencies from config, exposes the commands with
// raw string arguments, and manages the run record, lock and index
// lifecycle on Close.
type SafeOpApp struct {
	cfg        *config.Config
	root       string
	index      safeop.Index
	encryptor  safeop.Encryptor
	mirror     safeop.Mirror
	locker     *lock.Locker
	service    *safeop.Service
	logger     *slogAdapter
	passphrase safeop.PassphraseFunc
	op         *Operation
	logFile    *os.File
}

// NewSafeOpApp creates a fully wired SafeOpApp from the given config.
// command identifies the CLI command being run (e.g. "backup", "list").
// The caller must call Close when done.
func NewSafeOpApp(cfg *config.Config, command string, opts Options) (*SafeOpApp, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Passphrase == nil {
		opts.Passphrase = PromptPassphrase("Passphrase: ", opts.Stderr)
	}

	root, err := resolveRoot(cfg, opts.Root)
	if err != nil {
		return nil, err
	}

	st, err := store.NewFileSystemStore(root)
	if err != nil {
		return nil, fmt.Errorf("creating artifact store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	mir, err := mirror.NewMirrorFromConfig(context.Background(), cfg.Mirror)
	if err != nil {
		return nil, fmt.Errorf("creating mirror: %w", err)
	}

	readOnly := readOnlyCommands[command]
	idx, idxErr := openIndex(cfg.Index, root, readOnly)
	if idxErr != nil && (!readOnly || errors.Is(idxErr, database.ErrUnknownIndexType)) {
		return nil, fmt.Errorf("opening index: %w", idxErr)
	}

	runID := uuid.NewString()
	logger, logFile, logErr := newLogger(cfg.LogDir, runID, opts.Verbose, opts.Stderr)
	if logErr != nil && readOnly {
		logger, logFile, _ = newLogger("", runID, opts.Verbose, opts.Stderr)
	} else if logErr != nil {
		idx.Close()
		return nil, fmt.Errorf("creating logger: %w", logErr)
	}
	adapter := &slogAdapter{l: logger}
	if logErr != nil {
		adapter.Warn("log file unavailable", "error", logErr)
	}
	if idxErr != nil {
		adapter.Warn("index unavailable, reading the operation log only", "error", idxErr)
		if idx, idxErr = database.NewIndexFromConfig(config.IndexConfig{Type: "memory"}, root); idxErr != nil {
			return nil, fmt.Errorf("opening index: %w", idxErr)
		}
	}

	log := oplog.NewFileLog(filepath.Join(root, oplog.FileName))
	svc := safeop.NewService(log, st, idx, fs.NewOSFilesystemManager(), enc, mir, adapter, safeop.SystemClock{}, safeop.UUIDGenerator{})

	return &SafeOpApp{
		cfg:        cfg,
		root:       root,
		index:      idx,
		encryptor:  enc,
		mirror:     mir,
		locker:     lock.New(root),
		service:    svc,
		logger:     adapter,
		passphrase: opts.Passphrase,
		op:         NewOperation(runID, command),
		logFile:    logFile,
	}, nil
}

// openIndex opens the configured index. Read-only commands never create it.
func openIndex(cfg config.IndexConfig, root string, readOnly bool) (safeop.Index, error) {
	if readOnly {
		return database.NewReadOnlyIndexFromConfig(cfg, root)
	}
	return database.NewIndexFromConfig(cfg, root)
}

// resolveRoot makes the backup root absolute against the working directory.
func resolveRoot(cfg *config.Config, override string) (string, error) {
	root := cfg.BackupRoot
	if override != "" {
		root = override
	}
	if root == "" {
		root = config.DefaultBackupRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving backup root: %w", err)
	}
	return abs, nil
}

// Root returns the absolute backup root.
func (a *SafeOpApp) Root() string {
	return a.root
}

// Operation returns the run being tracked for this invocation.
func (a *SafeOpApp) Operation() *Operation {
	return a.op
}

// begin prepares a mutating command: it waits for the backup root lock and
// persists the run record, giving it an ID from the index.
func (a *SafeOpApp) begin(params ...string) error {
	if !a.cfg.DisableLock {
		if err := a.locker.AcquireWait(a.cfg.LockWaitDuration()); err != nil {
			return err
		}
	}

	if a.op.Persisted() {
		return nil
	}
	var nonEmpty []string
	for _, p := range params {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	a.op.Parameters = strings.Join(nonEmpty, " ")
	run, err := a.index.CreateRun(a.op.RunID, a.op.Command, a.op.Parameters, safeop.SystemClock{}.Now())
	if err != nil {
		// Run history is best-effort.
		a.logger.Warn("recording run failed", "error", err)
		return nil
	}
	a.op.ID = run.ID
	return nil
}

// Backup copies the file at rawPath into the backup root. maxBackups
// prunes older artifacts of the same file after the copy; zero disables
// pruning.
func (a *SafeOpApp) Backup(rawPath string, maxBackups int, comment string) (string, error) {
	if err := a.begin(rawPath); err != nil {
		return "", a.op.Fail(err)
	}
	p, err := a.service.Backup(rawPath, safeop.BackupOptions{MaxBackups: maxBackups, Comment: comment})
	return p, a.op.Fail(err)
}

// Restore writes an artifact back to target, or to its original path when
// target is empty.
func (a *SafeOpApp) Restore(rawBackupPath, target string) (string, error) {
	if err := a.begin(rawBackupPath, target); err != nil {
		return "", a.op.Fail(err)
	}
	p, err := a.service.Restore(rawBackupPath, safeop.RestoreOptions{Target: target, Passphrase: a.passphrase})
	return p, a.op.Fail(err)
}

// List returns the log records, filtered to rawPath when it is non-empty.
func (a *SafeOpApp) List(rawPath string) ([]*safeop.BackupRecord, error) {
	return a.service.List(rawPath)
}

// Clean deletes all but the keep newest artifacts of the file at rawPath.
func (a *SafeOpApp) Clean(rawPath string, keep int) ([]string, error) {
	if err := a.begin(rawPath, strconv.Itoa(keep)); err != nil {
		return nil, a.op.Fail(err)
	}
	removed, err := a.service.Clean(rawPath, keep)
	return removed, a.op.Fail(err)
}

// Verify checks an artifact against the checksum recorded at backup time.
func (a *SafeOpApp) Verify(rawBackupPath string) (*safeop.VerifyResult, error) {
	return a.service.Verify(rawBackupPath, a.passphrase)
}

// GetHistory returns the most recent runs.
func (a *SafeOpApp) GetHistory(limit int) ([]*safeop.Run, error) {
	return a.service.GetHistory(limit)
}

// SetupEncryption generates the key pair for the configured encryptor.
func (a *SafeOpApp) SetupEncryption(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is disabled: set encryption.type in the config")
	}
	return a.encryptor.Setup(passphrase)
}

// Close finalizes the run and closes all resources.
// For persisted runs: finishes the run record, and when a mirror is
// configured, snapshots the index and uploads it. The lock is released last.
func (a *SafeOpApp) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.op.Persisted() {
		if err := a.index.FinishRun(a.op.ID, a.op.Status, safeop.SystemClock{}.Now()); err != nil {
			keep(fmt.Errorf("finishing run: %w", err))
		}
		if a.mirror != nil {
			keep(a.mirrorIndex())
		}
	}

	if err := a.index.Close(); err != nil {
		keep(fmt.Errorf("closing index: %w", err))
	}

	if a.locker.Held() {
		if err := a.locker.Release(); err != nil {
			keep(fmt.Errorf("releasing lock: %w", err))
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// mirrorIndex snapshots the index to a temp file and uploads it.
func (a *SafeOpApp) mirrorIndex() error {
	tmpFile, err := os.CreateTemp("", "safeop-index-*.db")
	if err != nil {
		return fmt.Errorf("creating temp file for index snapshot: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if err := a.index.BackupTo(tmpPath); err != nil {
		return fmt.Errorf("snapshotting index: %w", err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("opening index snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat index snapshot: %w", err)
	}

	if err := a.mirror.Put(IndexMirrorKey, f, info.Size()); err != nil {
		return fmt.Errorf("uploading index snapshot: %w", err)
	}
	a.logger.Debug("index mirrored", "key", IndexMirrorKey)
	return nil
}
