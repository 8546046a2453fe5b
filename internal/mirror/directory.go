package mirror

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"safeop/internal/safeop"
)

// DirectoryMirror copies artifacts into another directory, typically a
// mounted network share or removable drive:
//
//	<dir>/
//	  <artifact name>
//	  index/index.db
type DirectoryMirror struct {
	dir string
}

var _ safeop.Mirror = (*DirectoryMirror)(nil)

// NewDirectoryMirror creates a mirror rooted at dir, creating it if needed.
func NewDirectoryMirror(dir string) (*DirectoryMirror, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating mirror directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("mirror directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mirror path is not a directory: %s", dir)
	}
	return &DirectoryMirror{dir: dir}, nil
}

func (m *DirectoryMirror) path(key string) (string, error) {
	if !filepath.IsLocal(key) {
		return "", fmt.Errorf("invalid mirror key: %q", key)
	}
	return filepath.Join(m.dir, filepath.FromSlash(key)), nil
}

// Put writes through a temp file and renames it into place, so a reader
// never sees a partial object.
func (m *DirectoryMirror) Put(key string, r io.Reader, size int64) error {
	dest, err := m.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating mirror directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
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

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

func (m *DirectoryMirror) Get(key string, w io.Writer) error {
	src, err := m.path(key)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &safeop.NotFoundError{What: "mirrored backup", Path: src}
		}
		return fmt.Errorf("opening %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}

func (m *DirectoryMirror) Delete(key string) error {
	p, err := m.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
