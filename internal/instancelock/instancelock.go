// Package instancelock enforces single-instance execution per named
// command: each long-running command acquires a named OS-level
// instance lock before starting, and startup aborts if it's already
// held.
package instancelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock wraps an acquired advisory file lock.
type Lock struct {
	fl   *flock.Flock
	Name string
}

// Acquire attempts to take the named lock under dir (default os.TempDir
// if dir is empty). It returns an error immediately if another process
// already holds it, so a second instance exits with a diagnostic rather
// than blocking.
func Acquire(dir, name string) (*Lock, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("soar-%s.lock", name))
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("instancelock: %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("instancelock: %q is already held by another process (lock file %s)", name, path)
	}
	return &Lock{fl: fl, Name: name}, nil
}

// Release drops the lock. Safe to call on a nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
