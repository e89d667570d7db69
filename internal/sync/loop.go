package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/movies-etl/internal/checkpoint"
	"github.com/stacklok/movies-etl/internal/document"
	"github.com/stacklok/movies-etl/internal/index"
	"github.com/stacklok/movies-etl/internal/otel"
	"github.com/stacklok/movies-etl/internal/source"
	"github.com/stacklok/movies-etl/internal/telemetry"
)

const (
	// TracerName is the name used for the cycle tracer
	TracerName = "github.com/stacklok/movies-etl/sync"

	// DefaultInterval is the pause between two cycles
	DefaultInterval = 10 * time.Second

	// releaseTimeout bounds the final checkpoint write after an interrupt
	releaseTimeout = 10 * time.Second
)

// Stage names a step of the run
type Stage string

const (
	// StageGuard acquires the run guard
	StageGuard Stage = "guard"
	// StageSetup prepares the target index
	StageSetup Stage = "setup"
	// StageCheckpoint reads the checkpoint
	StageCheckpoint Stage = "checkpoint"
	// StageExtract reads modified rows from the source
	StageExtract Stage = "extract"
	// StageTransform builds the documents
	StageTransform Stage = "transform"
	// StageLoad publishes the documents
	StageLoad Stage = "load"
	// StageCommit advances the watermarks
	StageCommit Stage = "commit"
)

// Error is a failure of one stage
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// State is the lifecycle state of a loop
type State string

const (
	// StateIdle means the loop is not running
	StateIdle State = "idle"
	// StateRunning means the loop holds the run guard and runs cycles
	StateRunning State = "running"
	// StateStopped means the loop ended on a fatal error or an interrupt
	StateStopped State = "stopped"
)

// CycleResult summarizes one successful cycle
type CycleResult struct {
	Impacted   int
	Loaded     int
	Watermarks checkpoint.Watermarks
	Duration   time.Duration
}

// Status is a point-in-time view of the loop
type Status struct {
	State           State                 `json:"state"`
	Owner           string                `json:"owner,omitempty"`
	StartedAt       *time.Time            `json:"started_at,omitempty"`
	Cycles          int                   `json:"cycles"`
	FailedCycles    int                   `json:"failed_cycles"`
	DocumentsLoaded int                   `json:"documents_loaded"`
	LastCycleAt     *time.Time            `json:"last_cycle_at,omitempty"`
	LastDuration    string                `json:"last_duration,omitempty"`
	LastImpacted    int                   `json:"last_impacted"`
	LastLoaded      int                   `json:"last_loaded"`
	LastError       string                `json:"last_error,omitempty"`
	Watermarks      checkpoint.Watermarks `json:"watermarks,omitempty"`
}

// Option configures a Loop
type Option func(*Loop) error

// WithInterval sets the pause between cycles
func WithInterval(d time.Duration) Option {
	return func(l *Loop) error {
		if d < 0 {
			return fmt.Errorf("interval must not be negative, got %s", d)
		}
		l.interval = d
		return nil
	}
}

// WithOwner sets the owner recorded in the checkpoint while the loop runs
func WithOwner(owner string) Option {
	return func(l *Loop) error {
		l.owner = owner
		return nil
	}
}

// WithSyncMetrics sets the metrics the loop records
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(l *Loop) error {
		l.metrics = metrics
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the loop.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loop) error {
		l.tracer = tracer
		return nil
	}
}

// Loop runs cycles until it is interrupted or a cycle fails
type Loop struct {
	store     checkpoint.Store
	reader    source.Reader
	loader    index.Loader
	indexName string
	interval  time.Duration
	owner     string
	metrics   *telemetry.SyncMetrics
	tracer    trace.Tracer
	now       func() time.Time

	mu     sync.RWMutex
	status Status
}

// NewLoop creates a loop over the given checkpoint store, source and index
func NewLoop(store checkpoint.Store, reader source.Reader, loader index.Loader, opts ...Option) (*Loop, error) {
	if store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("source reader is required")
	}
	if loader == nil {
		return nil, fmt.Errorf("index loader is required")
	}

	l := &Loop{
		store:    store,
		reader:   reader,
		loader:   loader,
		interval: DefaultInterval,
		now:      time.Now,
		status:   Status{State: StateIdle},
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.indexName = loader.Index()
	l.status.Owner = l.owner

	return l, nil
}

// Run takes the run guard and runs cycles, pausing for the interval between
// them, until ctx is cancelled or a cycle fails. An interrupt returns nil.
// Either way the run is recorded as stopped.
func (l *Loop) Run(ctx context.Context) error {
	return l.run(ctx, false)
}

// RunOnce takes the run guard, runs a single cycle and records the run as idle
// when the cycle succeeded
func (l *Loop) RunOnce(ctx context.Context) error {
	return l.run(ctx, true)
}

func (l *Loop) run(ctx context.Context, once bool) (err error) {
	if err := l.store.AcquireRun(ctx, l.owner); err != nil {
		if errors.Is(err, checkpoint.ErrAlreadyRunning) {
			slog.ErrorContext(ctx, "ETL process already started, please stop it before run")
			return err
		}
		return &Error{Stage: StageGuard, Err: err}
	}

	started := l.now()
	l.withStatus(func(s *Status) {
		s.State = StateRunning
		s.StartedAt = &started
	})
	slog.InfoContext(ctx, "ETL process started", "owner", l.owner, "interval", l.interval, "once", once)

	defer func() {
		final := StateStopped
		if once && err == nil && ctx.Err() == nil {
			final = StateIdle
		}
		if releaseErr := l.release(ctx, final); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
	}()

	if err := l.loader.EnsureIndex(ctx); err != nil {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "ETL process interrupted")
			return nil
		}
		return &Error{Stage: StageSetup, Err: err}
	}

	for {
		if _, err := l.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				slog.InfoContext(ctx, "ETL process interrupted")
				return nil
			}
			return err
		}
		if once {
			return nil
		}

		slog.DebugContext(ctx, "Waiting for next cycle", "interval", l.interval)
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "ETL process interrupted")
			return nil
		case <-time.After(l.interval):
		}
	}
}

// release records the final run state with a context that outlives an interrupt
func (l *Loop) release(ctx context.Context, state State) error {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	l.withStatus(func(s *Status) { s.State = state })

	runState := checkpoint.RunStateStopped
	if state == StateIdle {
		runState = checkpoint.RunStateIdle
	}
	if err := l.store.ReleaseRun(releaseCtx, runState); err != nil {
		slog.ErrorContext(ctx, "Failed to record final run state", "state", runState, "error", err)
		return fmt.Errorf("failed to release run: %w", err)
	}
	slog.InfoContext(ctx, "ETL process finished", "state", runState)
	return nil
}

// RunCycle runs one extract, transform, load and commit cycle. The watermarks are
// committed only after every document was published.
func (l *Loop) RunCycle(ctx context.Context) (*CycleResult, error) {
	ctx, span := otel.StartSpan(ctx, l.tracer, "sync.RunCycle")
	defer span.End()

	start := l.now()
	result, err := l.cycle(ctx)
	duration := l.now().Sub(start)

	var stage string
	if err != nil {
		var stageErr *Error
		if errors.As(err, &stageErr) {
			stage = string(stageErr.Stage)
			span.SetAttributes(otel.AttrStage.String(stage))
		}
		otel.RecordError(span, err)
	}
	l.metrics.RecordCycle(ctx, duration, stage)
	l.recordCycle(start, duration, result, err)

	if err != nil {
		slog.ErrorContext(ctx, "Cycle failed", "stage", stage, "duration", duration, "error", err)
		return nil, err
	}

	result.Duration = duration
	slog.InfoContext(ctx, "Cycle completed",
		"impacted_films", result.Impacted,
		"loaded", result.Loaded,
		"duration", duration)
	return result, nil
}

func (l *Loop) cycle(ctx context.Context) (*CycleResult, error) {
	cp, err := l.store.Load(ctx)
	if err != nil {
		return nil, &Error{Stage: StageCheckpoint, Err: err}
	}

	slog.InfoContext(ctx, "Start extract data from PostgreSQL")
	ext, err := l.reader.Extract(ctx, cp.Watermarks)
	if err != nil {
		return nil, &Error{Stage: StageExtract, Err: err}
	}
	l.metrics.RecordImpactedFilms(ctx, ext.Count())

	result := &CycleResult{Impacted: ext.Count()}

	if ext.Count() > 0 {
		slog.InfoContext(ctx, "Start data transfer to Elasticsearch", "films", ext.Count())
		loaded, err := l.loader.Load(ctx, document.Transform(ext.Rows))
		result.Loaded = loaded
		l.metrics.RecordDocumentsLoaded(ctx, l.indexName, loaded)
		if err != nil {
			if errors.Is(err, document.ErrMissingTitle) {
				return result, &Error{Stage: StageTransform, Err: err}
			}
			return result, &Error{Stage: StageLoad, Err: err}
		}
	} else {
		slog.InfoContext(ctx, "No data to load into Elasticsearch")
	}

	if len(ext.Watermarks) > 0 {
		slog.InfoContext(ctx, "Save state of data modified")
		if err := l.store.Commit(ctx, ext.Watermarks); err != nil {
			return result, &Error{Stage: StageCommit, Err: err}
		}
	}

	result.Watermarks = cp.Watermarks.Merge(ext.Watermarks)
	return result, nil
}

func (l *Loop) recordCycle(start time.Time, duration time.Duration, result *CycleResult, err error) {
	l.withStatus(func(s *Status) {
		s.LastCycleAt = &start
		s.LastDuration = duration.String()
		if result != nil {
			s.LastImpacted = result.Impacted
			s.LastLoaded = result.Loaded
			s.DocumentsLoaded += result.Loaded
		}
		if err != nil {
			s.FailedCycles++
			s.LastError = err.Error()
			return
		}
		s.Cycles++
		s.LastError = ""
		s.Watermarks = result.Watermarks.Clone()
	})
}

func (l *Loop) withStatus(fn func(*Status)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.status)
}

// Status returns a snapshot of the loop state
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := l.status
	s.Watermarks = l.status.Watermarks.Clone()
	return s
}
