// Package retry wraps fallible operations with bounded exponential backoff.
//
// Validation failures are deterministic and never retried. Every other
// failure is retried until the budget is spent, then classified into a
// memoerr.MemoError.
package retry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoforge/internal/logging"
	"github.com/fyrsmithlabs/memoforge/internal/memoerr"
)

// Defaults for Options.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a single call site.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero or negative means one attempt and no retry.
	MaxRetries int

	// BaseDelay is the delay before the first retry; it doubles on each
	// subsequent retry.
	BaseDelay time.Duration

	// Context is attached to log entries and to the classified error.
	Context map[string]any

	// OnRetry, if set, is called before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultOptions returns options with the package defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

// Executor holds the collaborators shared by every retried call.
// It has no mutable state and is safe for concurrent use.
type Executor struct {
	logger  *logging.Logger
	sleep   SleepFunc
	retries metric.Int64Counter
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleep replaces the backoff sleep (tests use it to avoid real delays).
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		e.sleep = fn
	}
}

// NewExecutor creates an Executor logging through logger. A nil logger
// disables logging.
func NewExecutor(logger *logging.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Executor{
		logger: logger.Named("retry"),
		sleep:  contextSleep,
	}
	// A failed instrument registration leaves retries nil; counting is skipped.
	e.retries, _ = otel.Meter("github.com/fyrsmithlabs/memoforge/internal/retry").Int64Counter(
		"memoforge.model.retries_total",
		metric.WithDescription("Retries performed after a failed attempt"),
	)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxDelay caps a single backoff.
const MaxDelay = 5 * time.Minute

// Delay returns the backoff before retry number attempt (1-based):
// base, 2*base, 4*base, ... capped at MaxDelay.
func Delay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < MaxDelay; i++ {
		d *= 2
	}
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}

// Do runs op until it succeeds, fails with a validation error, or the retry
// budget is spent. The returned error, if any, is always a *memoerr.MemoError.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T
	if e == nil {
		e = NewExecutor(nil)
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	base := opts.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	fields := contextFields(opts.Context)

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			e.logger.Debug(ctx, "attempt succeeded", append(fields, zap.Int("attempt", attempt))...)
			return result, nil
		}

		if memoerr.IsValidation(err) {
			e.logger.Warn(ctx, "validation failure, not retrying",
				append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
			return zero, err
		}

		if attempt > maxRetries {
			classified := memoerr.Classify(err, opts.Context)
			e.logger.Error(ctx, "operation failed, retries exhausted",
				append(fields,
					zap.Int("attempts", attempt),
					zap.String("code", string(classified.Code)),
					zap.Error(err))...)
			return zero, classified
		}

		delay := Delay(base, attempt)
		e.logger.Warn(ctx, "attempt failed, retrying",
			append(fields,
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err))...)

		if e.retries != nil {
			e.retries.Add(ctx, 1, metric.WithAttributes(
				attribute.String("code", string(memoerr.CodeOf(err)))))
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}

		if serr := e.sleep(ctx, delay); serr != nil {
			classified := memoerr.Classify(serr, opts.Context)
			e.logger.Error(ctx, "backoff interrupted", append(fields, zap.Error(serr))...)
			return zero, classified
		}
	}
}

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func contextFields(ctx map[string]any) []zap.Field {
	if len(ctx) == 0 {
		return nil
	}
	fields := make([]zap.Field, 0, len(ctx))
	for k, v := range ctx {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}
