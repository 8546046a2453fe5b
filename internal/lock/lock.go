//go:build unix

// Package lock serializes mutating safeop invocations that share a backup
// root, using an advisory flock on <root>/.lock.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"safeop/internal/safeop"
)

// FileName is the lock file inside the backup root.
const FileName = ".lock"

// Locker holds an exclusive flock on a backup root. The kernel drops the
// lock when the holding process exits, so a crashed run never leaves a
// stale lock behind and the file itself is never removed.
type Locker struct {
	path string
	fd   *os.File
	pid  int
}

// New creates a Locker for the backup root. Nothing is touched until Acquire.
func New(root string) *Locker {
	return &Locker{
		path: filepath.Join(root, FileName),
		pid:  os.Getpid(),
	}
}

// Path returns the lock file location.
func (l *Locker) Path() string {
	return l.path
}

// pollInterval is how often AcquireWait retries a held lock.
const pollInterval = 50 * time.Millisecond

// Acquire takes the lock without blocking. If another process holds it the
// error wraps safeop.ErrLocked and names the holder's PID when known.
func (l *Locker) Acquire() error {
	if l.fd != nil {
		return nil
	}
	holder, err := l.try()
	if err != nil {
		return err
	}
	if l.fd != nil {
		return nil
	}
	return l.lockedError(holder)
}

// AcquireWait retries Acquire until it succeeds or wait has elapsed, so
// overlapping invocations run one after the other. A zero wait behaves
// like Acquire.
func (l *Locker) AcquireWait(wait time.Duration) error {
	if l.fd != nil {
		return nil
	}
	deadline := time.Now().Add(wait)
	for {
		holder, err := l.try()
		if err != nil {
			return err
		}
		if l.fd != nil {
			return nil
		}
		if !time.Now().Before(deadline) {
			return l.lockedError(holder)
		}
		time.Sleep(min(pollInterval, time.Until(deadline)))
	}
}

// try makes one non-blocking attempt. On contention it returns the
// holder's PID (0 when unknown) with l.fd still nil.
func (l *Locker) try() (int, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return 0, fmt.Errorf("creating backup root: %w", err)
	}

	fd, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return 0, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(fd.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		holder := readPid(fd)
		_ = fd.Close()
		// EWOULDBLOCK and EAGAIN are distinct on some older systems.
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			return holder, nil
		}
		return 0, fmt.Errorf("acquiring lock: %w", err)
	}

	if err := fd.Truncate(0); err != nil {
		_ = fd.Close()
		return 0, fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := fd.WriteAt([]byte(strconv.Itoa(l.pid)), 0); err != nil {
		_ = fd.Close()
		return 0, fmt.Errorf("writing PID to lock file: %w", err)
	}

	l.fd = fd
	return 0, nil
}

func (l *Locker) lockedError(holder int) error {
	if holder > 0 {
		return fmt.Errorf("%w (pid %d, %s)", safeop.ErrLocked, holder, l.path)
	}
	return fmt.Errorf("%w (%s)", safeop.ErrLocked, l.path)
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *Locker) Release() error {
	if l.fd == nil {
		return nil
	}
	fd := l.fd
	l.fd = nil

	_ = fd.Truncate(0)
	if err := syscall.Flock(int(fd.Fd()), syscall.LOCK_UN); err != nil {
		_ = fd.Close()
		return fmt.Errorf("releasing lock: %w", err)
	}
	return fd.Close()
}

// Held reports whether this Locker currently holds the lock.
func (l *Locker) Held() bool {
	return l.fd != nil
}

func readPid(fd *os.File) int {
	buf := make([]byte, 32)
	n, _ := fd.ReadAt(buf, 0)
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}
