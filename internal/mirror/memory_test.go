package mirror

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"safeop/internal/safeop"
)

func TestMemoryMirror(t *testing.T) {
	t.Parallel()
	m := NewMemoryMirror()

	if err := m.Put("a.bak", strings.NewReader("data"), 4); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := m.Put("b.bak", strings.NewReader("data"), 5); err == nil {
		t.Error("Put() with wrong size expected error")
	}
	if !m.Has("a.bak") || m.Len() != 1 {
		t.Errorf("Has/Len = %v/%d, want true/1", m.Has("a.bak"), m.Len())
	}

	var buf bytes.Buffer
	if err := m.Get("a.bak", &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != "data" {
		t.Errorf("Get() = %q, want %q", buf.String(), "data")
	}

	if err := m.Delete("a.bak"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := m.Delete("a.bak"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
	if err := m.Get("a.bak", &buf); !errors.Is(err, safeop.ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}
