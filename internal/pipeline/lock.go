package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lockFile = "pipeline.lock"

var ErrLocked = errors.New("another pipeline run holds the lock")

// acquireLock creates the lock file exclusively. The returned func removes it.
func acquireLock(dir, runID string) (func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, lockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			holder, _ := os.ReadFile(path)
			return nil, fmt.Errorf("%w (%s): %s", ErrLocked, path, holder)
		}
		return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
	}
	_, werr := fmt.Fprintf(f, "run=%s pid=%d started=%s\n", runID, os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write lock file %s: %w", path, werr)
	}
	return func() error { return os.Remove(path) }, nil
}
