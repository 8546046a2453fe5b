package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"safeop/internal/safeop"
)

// maxCollisions bounds the "-<seq>" suffix search within one second.
const maxCollisions = 1000

// FileSystemStore keeps artifacts as plain files in a single directory:
//
//	<root>/
//	  <base>.<timestamp>.bak
//	  <base>.<timestamp>-1.bak
//
// The directory is created on the first write.
type FileSystemStore struct {
	root string
	link func(oldname, newname string) error
}

// NewFileSystemStore creates a store rooted at root, which is made absolute.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving backup root: %w", err)
	}
	return &FileSystemStore{root: abs, link: os.Link}, nil
}

func (s *FileSystemStore) Root() string {
	return s.root
}

// Create writes the content to a temp file and then publishes it under the
// first free artifact name, so an existing artifact is never replaced.
func (s *FileSystemStore) Create(base string, at time.Time, write safeop.WriteFunc) (*safeop.Artifact, error) {
	tmpPath, err := s.writeTemp(write)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	for seq := 0; seq < maxCollisions; seq++ {
		dest := filepath.Join(s.root, safeop.ArtifactName(base, at, seq))
		err := s.publish(tmpPath, dest)
		if err == nil {
			return s.Stat(dest)
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("publishing backup: %w", err)
		}
	}
	return nil, fmt.Errorf("too many backups of %s at %s", base, at.UTC().Format(time.RFC3339))
}

func (s *FileSystemStore) Put(name string, write safeop.WriteFunc) (*safeop.Artifact, error) {
	tmpPath, err := s.writeTemp(write)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	dest := filepath.Join(s.root, name)
	if err := s.publish(tmpPath, dest); err != nil {
		return nil, fmt.Errorf("publishing backup: %w", err)
	}
	return s.Stat(dest)
}

func (s *FileSystemStore) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &safeop.NotFoundError{What: "backup", Path: path}
		}
		return nil, fmt.Errorf("opening backup: %w", err)
	}
	return f, nil
}

func (s *FileSystemStore) Stat(path string) (*safeop.Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &safeop.NotFoundError{What: "backup", Path: path}
		}
		return nil, fmt.Errorf("stat backup: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("backup is not a regular file: %s", path)
	}
	return newArtifact(path, info.ModTime(), info.Size()), nil
}

func (s *FileSystemStore) List(base string) ([]*safeop.Artifact, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup root: %w", err)
	}

	var artifacts []*safeop.Artifact
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		parsed, ok := safeop.ParseArtifactName(e.Name())
		if !ok || parsed.Source != base {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		artifacts = append(artifacts, newArtifact(filepath.Join(s.root, e.Name()), info.ModTime(), info.Size()))
	}

	safeop.SortNewestFirst(artifacts)
	return artifacts, nil
}

func (s *FileSystemStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing backup: %w", err)
	}
	return nil
}

// publish places tmpPath at dest without replacing an existing file. It
// hard-links where the filesystem supports it and otherwise copies into an
// exclusively created file. An existing dest yields an os.ErrExist error.
func (s *FileSystemStore) publish(tmpPath, dest string) error {
	err := s.link(tmpPath, dest)
	if err == nil || errors.Is(err, os.ErrExist) {
		return err
	}
	return copyExclusive(tmpPath, dest)
}

func copyExclusive(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}

// writeTemp streams content into a synced temp file inside the root and
// returns its path. The caller removes it.
func (s *FileSystemStore) writeTemp(write safeop.WriteFunc) (string, error) {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return "", fmt.Errorf("creating backup root: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmpFile); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	success = true
	return tmpPath, nil
}

// newArtifact fills an Artifact from its path, decoding the name when it
// follows the artifact naming scheme.
func newArtifact(path string, modTime time.Time, size int64) *safeop.Artifact {
	name := filepath.Base(path)
	a := &safeop.Artifact{
		Path:    path,
		Name:    name,
		ModTime: modTime,
		Size:    size,
	}
	if parsed, ok := safeop.ParseArtifactName(name); ok {
		a.Source = parsed.Source
		a.CreatedAt = parsed.CreatedAt
		a.Seq = parsed.Seq
	}
	return a
}

// Compile-time check that FileSystemStore implements safeop.ArtifactStore
var _ safeop.ArtifactStore = (*FileSystemStore)(nil)
