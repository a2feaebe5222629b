package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StaleLockAge is how old a lock file must be before it is ignored.
const StaleLockAge = 10 * time.Minute

// lockIndex takes an exclusive lock on indexDir for a bulk operation. The
// lock file sits next to the directory so pruning never sees it. The path
// is made absolute first; "." would otherwise put "..lock" inside it.
func lockIndex(indexDir string) (func() error, error) {
	abs, err := filepath.Abs(indexDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", indexDir, err)
	}
	lockPath := abs + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > StaleLockAge {
		_ = os.Remove(lockPath)
	}

	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%s is locked by another process (lock file: %s). "+
			"If this is an error, remove the lock file manually", indexDir, lockPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	_, werr := fmt.Fprintf(f, "pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := errors.Join(werr, f.Close()); err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	return func() error {
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove lock file: %w", err)
		}
		return nil
	}, nil
}
