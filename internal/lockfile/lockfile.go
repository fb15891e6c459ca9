// Package lockfile provides advisory, cross-process exclusive file
// locks used to serialize mutations to the inbox, task, and team
// config stores. Acquisition blocks until the lock is available;
// release is guaranteed on every exit path via Unlocker.Close.
package lockfile

import (
	"os"
	"path/filepath"
)

// Unlocker releases a held lock. Close is idempotent.
type Unlocker interface {
	Close() error
}

// Acquire blocks until it obtains an exclusive advisory lock on path,
// creating the lock file (and its parent directory) if necessary.
// Reentrant acquisition within a single process is not supported and
// will deadlock, matching the cross-process-only contract in the
// specification this package implements.
func Acquire(path string) (Unlocker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := lockExclusive(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileLock{f: f}, nil
}

type fileLock struct {
	f      *os.File
	closed bool
}

func (l *fileLock) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	defer func() { _ = l.f.Close() }()
	return unlockExclusive(l.f)
}
