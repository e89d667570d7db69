package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// RunLockSuffix is appended to the checkpoint location to build the run guard path
const RunLockSuffix = ".run.lock"

// record is the backend-specific persistence of a Checkpoint
type record interface {
	// read returns the stored checkpoint, or an empty one when nothing is stored
	read(ctx context.Context) (*Checkpoint, error)
	// update applies fn to the stored checkpoint and persists the result atomically
	update(ctx context.Context, fn func(cp *Checkpoint) error) error
	close() error
}

// store implements Store on top of a record and a run guard
type store struct {
	rec   record
	guard *flock.Flock
	now   func() time.Time

	mu   sync.Mutex
	held bool
}

func newStore(rec record, guardPath string) *store {
	return &store{
		rec:   rec,
		guard: flock.New(guardPath),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *store) Load(ctx context.Context) (*Checkpoint, error) {
	cp, err := s.rec.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

func (s *store) Get(ctx context.Context, stream Stream) (time.Time, error) {
	cp, err := s.Load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return cp.Watermarks.Get(stream), nil
}

func (s *store) Set(ctx context.Context, stream Stream, watermark time.Time) error {
	return s.Commit(ctx, Watermarks{stream: watermark})
}

func (s *store) Commit(ctx context.Context, watermarks Watermarks) error {
	err := s.rec.update(ctx, func(cp *Checkpoint) error {
		cp.Watermarks = cp.Watermarks.Merge(watermarks)
		now := s.now()
		cp.LastCommitAt = &now
		cp.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit watermarks: %w", err)
	}
	return nil
}

func (s *store) SetRunState(ctx context.Context, state RunState) error {
	err := s.rec.update(ctx, func(cp *Checkpoint) error {
		cp.RunState = state
		cp.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set run state to %s: %w", state, err)
	}
	return nil
}

func (s *store) AcquireRun(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return ErrAlreadyRunning
	}

	locked, err := s.guard.TryLock()
	if err != nil {
		return fmt.Errorf("failed to take run guard %s: %w", s.guard.Path(), err)
	}
	if !locked {
		return ErrAlreadyRunning
	}

	err = s.rec.update(ctx, func(cp *Checkpoint) error {
		if cp.RunState == RunStateRunning {
			slog.WarnContext(ctx, "Reclaiming stale running state left by a dead process",
				"previous_owner", cp.Owner,
				"started_at", cp.StartedAt)
		}
		now := s.now()
		cp.RunState = RunStateRunning
		cp.Owner = owner
		cp.StartedAt = &now
		cp.UpdatedAt = now
		return nil
	})
	if err != nil {
		_ = s.guard.Unlock()
		return fmt.Errorf("failed to record running state: %w", err)
	}

	s.held = true
	slog.InfoContext(ctx, "Run guard acquired", "owner", owner, "guard", s.guard.Path())
	return nil
}

func (s *store) ReleaseRun(ctx context.Context, state RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updateErr := s.rec.update(ctx, func(cp *Checkpoint) error {
		cp.RunState = state
		cp.Owner = ""
		cp.StartedAt = nil
		cp.UpdatedAt = s.now()
		return nil
	})
	if updateErr != nil {
		updateErr = fmt.Errorf("failed to record run state %s: %w", state, updateErr)
	}

	return errors.Join(updateErr, s.unlockGuard())
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return errors.Join(s.unlockGuard(), s.rec.close())
}

// unlockGuard drops the run guard if this store holds it; callers hold s.mu
func (s *store) unlockGuard() error {
	if !s.held {
		return nil
	}
	s.held = false
	if err := s.guard.Unlock(); err != nil {
		return fmt.Errorf("failed to release run guard %s: %w", s.guard.Path(), err)
	}
	return nil
}
