package safeop

import "io"

// Mirror keeps a remote copy of each artifact. Mirror failures never fail
// the local operation; they are logged and the local store stays
// authoritative.
type Mirror interface {
	// Put uploads size bytes from r under key.
	Put(key string, r io.Reader, size int64) error

	// Get downloads key into w. A missing key yields a *NotFoundError.
	Get(key string, w io.Writer) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}
