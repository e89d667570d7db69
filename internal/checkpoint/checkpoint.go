// Package checkpoint persists the per-stream watermarks and the run state of the
// sync loop between process restarts.
package checkpoint

import (
	"context"
	"errors"
	"maps"
	"time"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=checkpoint.go Store

// Stream identifies one change-tracked source table
type Stream string

const (
	// StreamPerson tracks content.person
	StreamPerson Stream = "person"
	// StreamGenre tracks content.genre
	StreamGenre Stream = "genre"
	// StreamFilmwork tracks content.film_work
	StreamFilmwork Stream = "filmwork"
)

// Streams lists every stream in extraction order
var Streams = []Stream{StreamPerson, StreamGenre, StreamFilmwork}

// RunState is the lifecycle state of the sync loop recorded in the checkpoint
type RunState string

const (
	// RunStateIdle means no run is in progress
	RunStateIdle RunState = "idle"
	// RunStateRunning means a process owns the sync loop
	RunStateRunning RunState = "running"
	// RunStateStopped means the last run ended on a fatal error or an interrupt
	RunStateStopped RunState = "stopped"
)

// ErrAlreadyRunning is returned by AcquireRun when another live process holds the run guard
var ErrAlreadyRunning = errors.New("another sync run is already in progress")

// Watermarks maps each stream to the newest modification time already published.
// An absent stream has the zero watermark, so everything after it is extracted.
type Watermarks map[Stream]time.Time

// Get returns the watermark of the stream, or the zero time when it was never set
func (w Watermarks) Get(s Stream) time.Time {
	return w[s]
}

// Clone returns an independent copy
func (w Watermarks) Clone() Watermarks {
	if w == nil {
		return Watermarks{}
	}
	return maps.Clone(w)
}

// Merge returns a copy of w where every stream of other has been advanced to the
// later of the two values. Watermarks never move backwards through Merge.
func (w Watermarks) Merge(other Watermarks) Watermarks {
	out := w.Clone()
	for s, t := range other {
		if t.After(out[s]) {
			out[s] = t.UTC()
		}
	}
	return out
}

// Checkpoint is the durable record shared by every run of the sync loop
type Checkpoint struct {
	Watermarks   Watermarks `json:"watermarks" yaml:"watermarks"`
	RunState     RunState   `json:"run_state" yaml:"run_state"`
	Owner        string     `json:"owner,omitempty" yaml:"owner,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	LastCommitAt *time.Time `json:"last_commit_at,omitempty" yaml:"last_commit_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Empty returns the checkpoint of a system that never ran
func Empty() *Checkpoint {
	return &Checkpoint{
		Watermarks: Watermarks{},
		RunState:   RunStateIdle,
	}
}

func (c *Checkpoint) normalize() *Checkpoint {
	if c.Watermarks == nil {
		c.Watermarks = Watermarks{}
	}
	if c.RunState == "" {
		c.RunState = RunStateIdle
	}
	return c
}

// Store reads and writes the checkpoint record.
//
// Every write is a read-modify-write of the whole record under a lock, so a write
// never clobbers keys it does not touch and watermarks never move backwards.
type Store interface {
	// Load returns the current checkpoint. A missing record yields an empty checkpoint.
	Load(ctx context.Context) (*Checkpoint, error)

	// Get returns the watermark of a single stream
	Get(ctx context.Context, stream Stream) (time.Time, error)

	// Set advances the watermark of a single stream
	Set(ctx context.Context, stream Stream, watermark time.Time) error

	// Commit advances every watermark in one write
	Commit(ctx context.Context, watermarks Watermarks) error

	// SetRunState records the run state without touching the run guard
	SetRunState(ctx context.Context, state RunState) error

	// AcquireRun takes the process-lifetime run guard and records the run as running.
	// It returns ErrAlreadyRunning without writing anything when another live
	// process holds the guard.
	AcquireRun(ctx context.Context, owner string) error

	// ReleaseRun records the final run state and drops the run guard
	ReleaseRun(ctx context.Context, state RunState) error

	// Close releases every resource held by the store, including the run guard
	Close() error
}
