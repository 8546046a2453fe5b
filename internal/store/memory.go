package store

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"safeop/internal/safeop"
)

type memoryArtifact struct {
	data    []byte
	modTime time.Time
}

// MemoryStore is an in-memory ArtifactStore for tests. Artifacts live under
// a virtual root; their modification time is the time they were named for.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	root      string
	artifacts map[string]*memoryArtifact // name -> artifact
	mu        sync.RWMutex
}

func NewMemoryStore(root string) *MemoryStore {
	return &MemoryStore{
		root:      filepath.Clean(root),
		artifacts: make(map[string]*memoryArtifact),
	}
}

func (m *MemoryStore) Root() string {
	return m.root
}

func (m *MemoryStore) Create(base string, at time.Time, write safeop.WriteFunc) (*safeop.Artifact, error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for seq := 0; seq < maxCollisions; seq++ {
		name := safeop.ArtifactName(base, at, seq)
		if _, ok := m.artifacts[name]; ok {
			continue
		}
		m.artifacts[name] = &memoryArtifact{data: buf.Bytes(), modTime: at}
		return newArtifact(filepath.Join(m.root, name), at, int64(buf.Len())), nil
	}
	return nil, fmt.Errorf("too many backups of %s", base)
}

func (m *MemoryStore) Put(name string, write safeop.WriteFunc) (*safeop.Artifact, error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.artifacts[name]; ok {
		return nil, fmt.Errorf("backup already exists: %s", name)
	}
	modTime := time.Time{}
	if parsed, ok := safeop.ParseArtifactName(name); ok {
		modTime = parsed.CreatedAt
	}
	m.artifacts[name] = &memoryArtifact{data: buf.Bytes(), modTime: modTime}
	return newArtifact(filepath.Join(m.root, name), modTime, int64(buf.Len())), nil
}

func (m *MemoryStore) Open(path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.lookup(path)
	if !ok {
		return nil, &safeop.NotFoundError{What: "backup", Path: path}
	}
	return io.NopCloser(bytes.NewReader(a.data)), nil
}

func (m *MemoryStore) Stat(path string) (*safeop.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.lookup(path)
	if !ok {
		return nil, &safeop.NotFoundError{What: "backup", Path: path}
	}
	return newArtifact(path, a.modTime, int64(len(a.data))), nil
}

func (m *MemoryStore) List(base string) ([]*safeop.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var artifacts []*safeop.Artifact
	for name, a := range m.artifacts {
		parsed, ok := safeop.ParseArtifactName(name)
		if !ok || parsed.Source != base {
			continue
		}
		artifacts = append(artifacts, newArtifact(filepath.Join(m.root, name), a.modTime, int64(len(a.data))))
	}
	safeop.SortNewestFirst(artifacts)
	return artifacts, nil
}

func (m *MemoryStore) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if filepath.Dir(path) == m.root {
		delete(m.artifacts, filepath.Base(path))
	}
	return nil
}

// SetContent replaces an artifact's bytes, e.g. to simulate tampering.
func (m *MemoryStore) SetContent(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.lookup(path)
	if !ok {
		return &safeop.NotFoundError{What: "backup", Path: path}
	}
	a.data = data
	return nil
}

// Count returns the number of artifacts held.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.artifacts)
}

func (m *MemoryStore) lookup(path string) (*memoryArtifact, bool) {
	if filepath.Dir(path) != m.root {
		return nil, false
	}
	a, ok := m.artifacts[filepath.Base(path)]
	return a, ok
}

var _ safeop.ArtifactStore = (*MemoryStore)(nil)
