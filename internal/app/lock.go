package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the single-owner lock inside the base directory.
const LockFileName = "reel.lock"

// ErrLocked is returned when another reel process owns the collection.
var ErrLocked = errors.New("collection is locked by another reel process")

// acquireLock takes the non-blocking exclusive lock in baseDir.
func acquireLock(baseDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}
	path := filepath.Join(baseDir, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	return lock, nil
}
