//go:build !unix

package lock

import (
	"path/filepath"
	"time"
)

// FileName is the lock file inside the backup root.
const FileName = ".lock"

// Locker is a no-op where flock is unavailable; runs are uncoordinated.
type Locker struct {
	path string
	held bool
}

func New(root string) *Locker {
	return &Locker{path: filepath.Join(root, FileName)}
}

func (l *Locker) Path() string { return l.path }

func (l *Locker) Acquire() error {
	l.held = true
	return nil
}

func (l *Locker) AcquireWait(time.Duration) error {
	return l.Acquire()
}

func (l *Locker) Release() error {
	l.held = false
	return nil
}

func (l *Locker) Held() bool { return l.held }
