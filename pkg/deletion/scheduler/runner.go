package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"mercator-hq/erasure/pkg/deletion"
	"mercator-hq/erasure/pkg/telemetry/logging"
	"mercator-hq/erasure/pkg/telemetry/tracing"
)

// ErrRunInProgress is returned by Trigger when another run holds the lock.
var ErrRunInProgress = errors.New("deletion run already in progress")

// Run outcomes reported to the Observer.
const (
	OutcomeSuccess      = "success"
	OutcomeSkipped      = "skipped"
	OutcomePrecondition = "precondition_failed"
	OutcomeError        = "error"
)

// Locker provides mutual exclusion between scheduler runs.
type Locker interface {
	// TryLock attempts to take the lock without blocking. When acquired is
	// true the caller must call unlock once the run finishes.
	TryLock(ctx context.Context) (unlock func(), acquired bool, err error)
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu sync.Mutex
}

// TryLock implements Locker.
func (l *LocalLocker) TryLock(ctx context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

// Observer receives the outcome of every triggered run.
type Observer interface {
	ObserveRun(outcome string, duration time.Duration, result *Result)
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Schedule is a standard five-field cron expression.
	// Example: "0 2 * * *" (daily at 2 AM)
	Schedule string

	// Locker serializes runs. Defaults to a LocalLocker.
	Locker Locker

	// Observer is notified after each run. Optional.
	Observer Observer
}

// Runner triggers a Scheduler on a cron schedule, never running two cycles
// at once.
type Runner struct {
	scheduler *Scheduler
	config    RunnerConfig
	cron      *cron.Cron
	mu        sync.Mutex
	logger    *slog.Logger
	running   bool
}

// NewRunner creates a new Runner.
func NewRunner(s *Scheduler, config RunnerConfig) *Runner {
	if config.Locker == nil {
		config.Locker = &LocalLocker{}
	}
	return &Runner{
		scheduler: s,
		config:    config,
		cron:      cron.New(),
		logger:    slog.Default().With("component", "deletion.runner"),
	}
}

// Start begins triggering runs on the configured schedule.
//
// Common cron expressions:
//   - "0 2 * * *"    - Daily at 2 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "*/15 * * * *" - Every 15 minutes
//
// If Schedule is empty, the runner does nothing.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.Schedule == "" {
		r.logger.Info("deletion schedule not configured, skipping runner")
		return nil
	}

	if _, err := cron.ParseStandard(r.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.config.Schedule, err)
	}

	_, err := r.cron.AddFunc(r.config.Schedule, func() {
		// Trigger logs and observes the outcome; the next tick tries again.
		_, _ = r.Trigger(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule deletion runs: %w", err)
	}

	r.cron.Start()
	r.running = true

	r.logger.Info("deletion runner started", "schedule", r.config.Schedule)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

// Trigger runs one scheduling cycle now, provided no other run holds the
// lock. It returns ErrRunInProgress when the lock is held.
func (r *Runner) Trigger(ctx context.Context) (result *Result, err error) {
	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	logger := r.logger.With("run_id", runID)

	ctx, span := tracing.Start(ctx, "deletion.run", tracing.AttrRunID.String(runID))
	defer func() {
		if result != nil {
			span.SetAttributes(tracing.AttrRunMode.String(string(result.Mode)))
			span.SetAttributes(tracing.BatchAttributes(&result.Batch)...)
		}
		tracing.End(span, err)
	}()

	unlock, acquired, err := r.config.Locker.TryLock(ctx)
	if err != nil {
		logger.Error("failed to acquire run lock", "error", err)
		r.observe(OutcomeError, 0, nil)
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		logger.Info("deletion run skipped, another run holds the lock")
		r.observe(OutcomeSkipped, 0, nil)
		return nil, ErrRunInProgress
	}
	defer unlock()

	logger.Info("starting deletion run")
	started := time.Now()

	// Once the batch is saved its request must go out, so shutdown or a
	// disconnected caller does not cancel the run. The requester's own
	// timeout still bounds it.
	result, err = r.scheduler.Execute(context.WithoutCancel(ctx))
	elapsed := time.Since(started)

	switch {
	case err == nil:
		logger.Info("deletion run completed",
			"batch_id", result.Batch.ID,
			"mode", result.Mode,
			"duration_ms", elapsed.Milliseconds(),
		)
		r.observe(OutcomeSuccess, elapsed, result)
	case deletion.IsPrecondition(err):
		logger.Warn("deletion run aborted", "error", err)
		r.observe(OutcomePrecondition, elapsed, nil)
	default:
		logger.Error("deletion run failed", "error", err)
		r.observe(OutcomeError, elapsed, nil)
	}

	return result, err
}

func (r *Runner) observe(outcome string, d time.Duration, result *Result) {
	if r.config.Observer != nil {
		r.config.Observer.ObserveRun(outcome, d, result)
	}
}

// Stop stops the runner and waits for a run in progress to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil && r.running {
		ctx := r.cron.Stop()
		<-ctx.Done()
		r.running = false
		r.logger.Info("deletion runner stopped")
	}
}

// IsRunning returns true if the runner is running.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.running
}

// NextRun returns the next scheduled run time, or nil when not scheduled.
func (r *Runner) NextRun() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron == nil {
		return nil
	}

	entries := r.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
