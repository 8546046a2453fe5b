package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"safeop/internal/safeop"
)

// OSFilesystemManager reads the files being backed up from the real filesystem.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Resolve makes rawPath absolute and stats it, following symlinks. Device
// files, pipes and sockets are rejected; directories resolve so the caller
// can report them.
func (m *OSFilesystemManager) Resolve(rawPath string) (*safeop.Path, error) {
	if rawPath == "" {
		return nil, safeop.Usagef("path must not be empty")
	}

	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &safeop.NotFoundError{What: "file", Path: absPath}
		}
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return safeop.NewPath(absPath, info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *safeop.Path) (io.ReadCloser, error) {
	if !path.IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path.String())
	}
	return os.Open(path.String())
}

// Compile-time check that OSFilesystemManager implements safeop.FilesystemManager interface
var _ safeop.FilesystemManager = (*OSFilesystemManager)(nil)
