package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultFileName is the checkpoint file used when no path is configured
	DefaultFileName = "state.json"

	lockRetryDelay = 10 * time.Millisecond
)

// fileRecord stores the checkpoint as a JSON document.
// Writes go to a temporary file which is then renamed over the record, under a
// lock file shared by every process using the same path.
type fileRecord struct {
	path string
	lock *flock.Flock

	// serializes goroutines of this process, flock does not
	mu sync.Mutex
}

// NewFileStore creates a checkpoint store backed by the JSON file at path.
// The parent directory is created if it does not exist.
func NewFileStore(path string) (Store, error) {
	if path == "" {
		path = DefaultFileName
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory for '%s': %w", path, err)
	}

	rec := &fileRecord{
		path: path,
		lock: flock.New(path + ".lock"),
	}
	return newStore(rec, path+RunLockSuffix), nil
}

func (f *fileRecord) read(_ context.Context) (*Checkpoint, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file '%s': %w", f.path, err)
	}
	if len(data) == 0 {
		return Empty(), nil
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint file '%s': %w", f.path, err)
	}
	return cp.normalize(), nil
}

func (f *fileRecord) update(ctx context.Context, fn func(cp *Checkpoint) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock checkpoint file '%s': %w", f.path, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock checkpoint file '%s'", f.path)
	}
	defer func() { _ = f.lock.Unlock() }()

	cp, err := f.read(ctx)
	if err != nil {
		return err
	}
	if err := fn(cp); err != nil {
		return err
	}
	return f.write(cp)
}

func (f *fileRecord) write(cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary checkpoint file '%s': %w", tempPath, err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint file '%s': %w", f.path, err)
	}
	return nil
}

func (f *fileRecord) close() error {
	return f.lock.Close()
}
