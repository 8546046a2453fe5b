package safeop

import "io"

// FilesystemManager gives the service read access to the files it backs up.
type FilesystemManager interface {
	// Resolve makes rawPath absolute and stats it. A missing path yields a
	// *NotFoundError with What == "file".
	Resolve(rawPath string) (*Path, error)

	// Open opens a resolved regular file for reading.
	Open(path *Path) (io.ReadCloser, error)
}
