// Package jobs provides the periodic execution contract used by the watch
// command. The scheduler knows nothing about what a job does; it only runs
// executors on an interval and retries the ones that fail.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Executor is one schedulable unit of work. A returned error signals the
// scheduler to retry; success returns nil.
type Executor interface {
	Execute(ctx context.Context, entityID string) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, entityID string) error

func (f ExecutorFunc) Execute(ctx context.Context, entityID string) error {
	return f(ctx, entityID)
}

// Runner invokes an executor for one entity on a fixed interval, retrying
// failed runs with exponential backoff before giving up until the next tick.
type Runner struct {
	exec       Executor
	entityID   string
	interval   time.Duration
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxRetries sets how many times a failed run is retried per tick.
func WithMaxRetries(n int) RunnerOption {
	return func(r *Runner) { r.maxRetries = n }
}

// WithBaseDelay sets the first retry delay; each retry doubles it.
func WithBaseDelay(d time.Duration) RunnerOption {
	return func(r *Runner) { r.baseDelay = d }
}

// WithLogger overrides the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner builds a Runner for one entity.
func NewRunner(exec Executor, entityID string, interval time.Duration, opts ...RunnerOption) *Runner {
	r := &Runner{
		exec:       exec,
		entityID:   entityID,
		interval:   interval,
		maxRetries: 2,
		baseDelay:  5 * time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes once immediately, then on every interval tick until the
// context is cancelled. It returns the context's error on shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	err := r.execWithRetry(ctx)
	if err != nil {
		r.logger.Error("scheduled run failed",
			slog.String("entity", r.entityID),
			slog.String("error", err.Error()))
		return
	}
	r.logger.Debug("scheduled run complete", slog.String("entity", r.entityID))
}

func (r *Runner) execWithRetry(ctx context.Context) error {
	var lastErr error
	delay := r.baseDelay

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Warn("retrying scheduled run",
				slog.String("entity", r.entityID),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if err := r.exec.Execute(ctx, r.entityID); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", r.maxRetries+1, lastErr)
}
