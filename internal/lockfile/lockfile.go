// Package lockfile provides per-identifier advisory file locking, used by
// the State Store to serialize concurrent writers to the same state file.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock wraps a held flock.Flock for one identifier. Callers must call
// Unlock when done, typically via defer.
type Lock struct {
	fl *flock.Flock
}

// Unlock releases the advisory lock.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}

// Acquire takes an exclusive lock for id under lockDir, creating lockDir if
// needed. This mirrors the teacher's lockCrew(name) pattern, generalized
// from per-crew-worker locks to any state-store identifier (job id, "state",
// an agent id).
func Acquire(lockDir, id string) (*Lock, error) {
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	lockPath := filepath.Join(lockDir, fmt.Sprintf("%s.lock", id))
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquiring lock for %s: %w", id, err)
	}
	return &Lock{fl: fl}, nil
}
