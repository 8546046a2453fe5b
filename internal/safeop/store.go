package safeop

import (
	"io"
	"time"
)

// WriteFunc streams artifact content into w.
type WriteFunc func(w io.Writer) error

// ArtifactStore owns the backup directory. Artifacts are immutable once
// created; they are only ever removed by Remove.
type ArtifactStore interface {
	// Root returns the absolute backup directory.
	Root() string

	// Create writes a new artifact for a file with the given base name,
	// named from at. The content is fully written before the artifact
	// becomes visible. If the name is already taken, a collision counter is
	// appended instead of overwriting the existing artifact.
	Create(base string, at time.Time, write WriteFunc) (*Artifact, error)

	// Put writes an artifact under an exact name. It fails if the name exists.
	Put(name string, write WriteFunc) (*Artifact, error)

	// Open opens an artifact by absolute path. A missing artifact yields a
	// *NotFoundError with What == "backup".
	Open(path string) (io.ReadCloser, error)

	// Stat describes an artifact by absolute path, with the same not-found
	// behavior as Open.
	Stat(path string) (*Artifact, error)

	// List returns the artifacts whose name decodes to the given source
	// base name, newest first. A store whose directory does not exist yet
	// is empty.
	List(base string) ([]*Artifact, error)

	// Remove deletes an artifact. Removing a missing artifact is not an error.
	Remove(path string) error
}
