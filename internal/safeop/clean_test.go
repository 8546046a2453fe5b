package safeop_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"safeop/internal/mirror"
	"safeop/internal/safeop"
)

// backupTimes makes n backups of path one minute apart, oldest first.
func backupTimes(t *testing.T, h *harness, path string, n int) []string {
	t.Helper()
	var out []string
	for i := 0; i < n; i++ {
		out = append(out, h.backup(t, path))
		h.clock.Advance(time.Minute)
	}
	return out
}

func TestService_Clean(t *testing.T) {
	t.Run("keeps the newest", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		src := h.addFile("config.yaml", "x")
		paths := backupTimes(t, h, src, 7)

		removed, err := h.svc.Clean(src, 3)
		if err != nil {
			t.Fatalf("Clean() error = %v", err)
		}
		if len(removed) != 4 {
			t.Fatalf("removed %d, want 4", len(removed))
		}
		if removed[len(removed)-1] != paths[0] {
			t.Errorf("oldest removed last: got %s", removed[len(removed)-1])
		}

		left, _ := h.store.List("config.yaml")
		if len(left) != 3 {
			t.Fatalf("%d artifacts left, want 3", len(left))
		}
		for i, a := range left {
			if a.Path != paths[6-i] {
				t.Errorf("left[%d] = %s, want %s", i, a.Path, paths[6-i])
			}
		}
		if n := len(h.records(t)); n != 7 {
			t.Errorf("log has %d records after clean, want 7", n)
		}
	})

	t.Run("keep zero removes all", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		src := h.addFile("a.txt", "x")
		backupTimes(t, h, src, 3)

		removed, err := h.svc.Clean(src, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(removed) != 3 || h.store.Count() != 0 {
			t.Errorf("removed %d, %d left", len(removed), h.store.Count())
		}
	})

	t.Run("fewer than keep is a no-op", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		src := h.addFile("a.txt", "x")
		backupTimes(t, h, src, 2)

		removed, err := h.svc.Clean(src, 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(removed) != 0 || h.store.Count() != 2 {
			t.Errorf("removed %d, %d left", len(removed), h.store.Count())
		}
	})

	t.Run("no artifacts", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		removed, err := h.svc.Clean(filepath.Join(h.dir, "never.txt"), 1)
		if err != nil {
			t.Fatalf("Clean() error = %v", err)
		}
		if len(removed) != 0 {
			t.Errorf("removed %d, want 0", len(removed))
		}
	})

	t.Run("negative keep is a usage error", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		if _, err := h.svc.Clean(filepath.Join(h.dir, "a.txt"), -1); !errors.Is(err, safeop.ErrUsage) {
			t.Errorf("Clean() error = %v, want ErrUsage", err)
		}
	})

	t.Run("only touches the file's own artifacts", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		a := h.addFile("a.txt", "x")
		aOld := h.addFile("a.txt.old", "x")
		b := h.addFile("b.txt", "x")
		backupTimes(t, h, a, 2)
		backupTimes(t, h, aOld, 2)
		backupTimes(t, h, b, 2)

		if _, err := h.svc.Clean(a, 0); err != nil {
			t.Fatal(err)
		}
		for _, base := range []string{"a.txt.old", "b.txt"} {
			left, _ := h.store.List(base)
			if len(left) != 2 {
				t.Errorf("%s has %d artifacts, want 2", base, len(left))
			}
		}
	})

	t.Run("marks index entries and deletes mirrored copies", func(t *testing.T) {
		t.Parallel()
		m := mirror.NewMemoryMirror()
		h := newHarnessWith(t, harnessOptions{mirror: m})
		src := h.addFile("a.txt", "x")
		paths := backupTimes(t, h, src, 2)

		if _, err := h.svc.Clean(src, 1); err != nil {
			t.Fatal(err)
		}

		entry, err := h.index.FindArtifact(paths[0])
		if err != nil || entry == nil {
			t.Fatalf("FindArtifact() = %v, %v", entry, err)
		}
		if !entry.RemovedAt.Valid {
			t.Error("pruned artifact not marked removed")
		}
		if m.Has(filepath.Base(paths[0])) {
			t.Error("pruned artifact still mirrored")
		}
		if !m.Has(filepath.Base(paths[1])) {
			t.Error("kept artifact removed from mirror")
		}
	})
}
