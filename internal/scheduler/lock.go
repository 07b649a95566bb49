package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another process holds the sweep lock.
var ErrAlreadyRunning = errors.New("another sweep is already running")

// SweepLock makes sure a single process sweeps a deployment at a time.
type SweepLock struct {
	path string
	lock *flock.Flock
}

// AcquireLock takes the lock file at path without blocking.
func AcquireLock(path string) (*SweepLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	l := &SweepLock{path: path, lock: flock.New(path)}
	ok, err := l.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
	}
	return l, nil
}

// Path returns the lock file path.
func (l *SweepLock) Path() string {
	return l.path
}

// Release unlocks the lock file.
func (l *SweepLock) Release() error {
	return l.lock.Unlock()
}
