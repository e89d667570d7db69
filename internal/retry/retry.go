// Package retry wraps fallible I/O operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultInitialInterval is the first wait after a transient failure
	DefaultInitialInterval = 100 * time.Millisecond

	// DefaultMultiplier is the growth factor applied to the wait after each failure
	DefaultMultiplier = 2.0

	// DefaultMaxInterval is the ceiling the wait is held at once reached
	DefaultMaxInterval = 30 * time.Second

	// DefaultMaxAttempts bounds the number of attempts of a single operation
	DefaultMaxAttempts = 100
)

// ErrExhausted is returned when an operation kept failing with transient errors
// until MaxAttempts was reached. It is a fatal condition for the caller.
var ErrExhausted = errors.New("retry attempts exhausted")

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(err error) bool

// Observer is notified about every failed attempt that is going to be retried.
type Observer func(name string, attempt uint, err error, wait time.Duration)

// Policy describes how an operation is retried
type Policy struct {
	// InitialInterval is the wait after the first transient failure
	InitialInterval time.Duration

	// Multiplier grows the wait after every failure; must be > 1
	Multiplier float64

	// MaxInterval is the ceiling for the wait
	MaxInterval time.Duration

	// MaxAttempts bounds the number of attempts, including the first one
	MaxAttempts uint

	// Classifier decides which errors are transient. Errors it rejects are
	// returned immediately without retrying. A nil classifier treats every
	// error as transient.
	Classifier Classifier

	// Observer, if set, is called before each wait
	Observer Observer
}

// DefaultPolicy returns a policy with the default schedule: 100ms doubling up to 30s,
// at most 100 attempts.
func DefaultPolicy() *Policy {
	return &Policy{
		InitialInterval: DefaultInitialInterval,
		Multiplier:      DefaultMultiplier,
		MaxInterval:     DefaultMaxInterval,
		MaxAttempts:     DefaultMaxAttempts,
	}
}

// WithClassifier returns a copy of the policy using the given classifier
func (p *Policy) WithClassifier(c Classifier) *Policy {
	cp := *p
	cp.Classifier = c
	return &cp
}

// WithObserver returns a copy of the policy notifying the given observer
func (p *Policy) WithObserver(o Observer) *Policy {
	cp := *p
	cp.Observer = o
	return &cp
}

// IsTransient reports whether the policy considers err retryable
func (p *Policy) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Classifier == nil {
		return true
	}
	return p.Classifier(err)
}

// NewBackOff builds the backoff schedule described by the policy.
// Jitter is disabled so the schedule is strictly increasing until MaxInterval.
func (p *Policy) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxInterval
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// Do runs op until it succeeds, fails with a non-transient error, exhausts the
// policy's attempts or ctx is done. The result of the first successful attempt is
// returned unmodified.
func Do[T any](ctx context.Context, p *Policy, name string, op func(context.Context) (T, error)) (T, error) {
	if p == nil {
		p = DefaultPolicy()
	}

	var attempt uint
	operation := func() (T, error) {
		attempt++
		slog.DebugContext(ctx, "Attempting operation", "operation", name, "attempt", attempt, "max_attempts", p.MaxAttempts)

		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if !p.IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		slog.WarnContext(ctx, "Operation failed with transient error",
			"operation", name,
			"attempt", attempt,
			"error", err)
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		slog.InfoContext(ctx, "Waiting before retry", "operation", name, "attempt", attempt, "wait", wait)
		if p.Observer != nil {
			p.Observer(name, attempt, err, wait)
		}
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.NewBackOff()),
		backoff.WithNotify(notify),
		backoff.WithMaxElapsedTime(0),
	}
	if p.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxAttempts))
	}

	res, err := backoff.Retry(ctx, operation, opts...)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s: %w", name, context.Cause(ctx))
	}
	// The attempt cap is checked before the permanent marker, so a permanent
	// failure on the last attempt still arrives wrapped.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return res, permanent.Unwrap()
	}
	if p.IsTransient(err) {
		return res, fmt.Errorf("%s: %w after %d attempts: %w", name, ErrExhausted, attempt, err)
	}
	return res, err
}
