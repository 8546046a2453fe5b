package safeop_test

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"safeop/internal/oplog"
	"safeop/internal/safeop"
	"safeop/internal/store"
	"safeop/internal/testutil"
)

// harness wires a Service to in-memory collaborators. Source files live in
// the mock filesystem under dir; restores write to the real dir.
type harness struct {
	svc    *safeop.Service
	fsmgr  *testutil.MockFilesystemManager
	log    *oplog.MemoryLog
	store  *store.MemoryStore
	index  safeop.Index
	clock  *testutil.StubClock
	logger *testutil.RecordingLogger
	dir    string
}

type harnessOptions struct {
	encryptor safeop.Encryptor
	mirror    safeop.Mirror
	log       safeop.OperationLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, harnessOptions{})
}

func newHarnessWith(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		fsmgr:  testutil.NewMockFilesystemManager(),
		log:    oplog.NewMemoryLog(),
		store:  store.NewMemoryStore(filepath.Join(dir, ".backups")),
		index:  testutil.NewTestIndex(t),
		clock:  testutil.FixedClock(),
		logger: testutil.NewRecordingLogger(),
		dir:    dir,
	}
	var log safeop.OperationLog = h.log
	if opts.log != nil {
		log = opts.log
	}
	h.svc = safeop.NewService(log, h.store, h.index, h.fsmgr, opts.encryptor, opts.mirror, h.logger, h.clock, testutil.NewStubIDGenerator())
	return h
}

// addFile puts a source file into the mock filesystem and returns its path.
func (h *harness) addFile(name, content string) string {
	path := filepath.Join(h.dir, name)
	h.fsmgr.AddFile(path, []byte(content))
	return path
}

func (h *harness) records(t *testing.T) []*safeop.BackupRecord {
	t.Helper()
	recs, _, err := h.log.ReadAll()
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	return recs
}

func (h *harness) backup(t *testing.T, path string) string {
	t.Helper()
	out, err := h.svc.Backup(path, safeop.BackupOptions{})
	if err != nil {
		t.Fatalf("Backup(%s) error = %v", path, err)
	}
	return out
}

// failingLog rejects every append.
type failingLog struct {
	oplog.MemoryLog
}

func (*failingLog) Append(*safeop.BackupRecord) error {
	return errors.New("disk full")
}

// failingMirror rejects every call.
type failingMirror struct{}

func (failingMirror) Put(string, io.Reader, int64) error { return errors.New("mirror unreachable") }
func (failingMirror) Get(string, io.Writer) error        { return errors.New("mirror unreachable") }
func (failingMirror) Delete(string) error                { return errors.New("mirror unreachable") }
