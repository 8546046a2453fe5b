package safeop

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a source file or backup artifact does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUsage marks errors caused by invalid invocation rather than by the filesystem.
	ErrUsage = errors.New("usage error")

	// ErrChecksumMismatch is returned by Verify when an artifact's content
	// no longer matches the checksum recorded at backup time.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrPassphraseRequired is returned when an encrypted artifact is read
	// without a way to obtain the passphrase.
	ErrPassphraseRequired = errors.New("artifact is encrypted and no passphrase was provided")

	// ErrLocked is returned when another process holds the backup root lock.
	ErrLocked = errors.New("backup root is locked by another process")
)

// NotFoundError reports which kind of object was missing and where.
type NotFoundError struct {
	What string // "file" or "backup"
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Path)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UsageError is an invalid invocation, e.g. a negative retention count.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func (e *UsageError) Unwrap() error { return ErrUsage }

// Usagef builds a UsageError from a format string.
func Usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}
