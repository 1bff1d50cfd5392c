package scheduler

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/erasure/pkg/deletion"
)

// Mode describes how a run chose its window.
type Mode string

const (
	// ModeInitial means no batch existed and the configured initial window was used.
	ModeInitial Mode = "initial"
	// ModeAdvance means the previous window was exhausted and the next
	// contiguous window was used.
	ModeAdvance Mode = "advance"
	// ModeReuse means records remained in the previous window and it was
	// requested again.
	ModeReuse Mode = "reuse"
)

// Result describes a successful run.
type Result struct {
	Batch deletion.Batch
	Mode  Mode
}

// Scheduler computes and requests the next deletion window.
//
// A Scheduler must not run concurrently with itself: the read of the last
// batch and the save of the next one are not atomic. Callers that can
// trigger overlapping runs must serialize them (see Runner).
type Scheduler struct {
	clock     deletion.Clock
	config    deletion.WindowConfig
	store     deletion.BatchStore
	requester deletion.Requester
	logger    *slog.Logger
}

// New creates a Scheduler. A nil clock uses the system clock.
//
// The window configuration is not validated here; Run rejects a
// non-positive window length before touching the store.
func New(clock deletion.Clock, config deletion.WindowConfig, store deletion.BatchStore, requester deletion.Requester) *Scheduler {
	if clock == nil {
		clock = deletion.SystemClock{}
	}
	return &Scheduler{
		clock:     clock,
		config:    config,
		store:     store,
		requester: requester,
		logger:    slog.Default().With("component", "deletion.scheduler"),
	}
}

// Run performs one scheduling cycle: it saves exactly one new batch and
// sends exactly one deletion request, or returns an error.
//
// Precondition failures (*deletion.ConfigurationError,
// *deletion.PrecedingBatchIncompleteError, *deletion.FutureWindowError)
// happen before any write. Store and requester errors are returned
// unchanged. A requester failure after a successful save leaves the saved
// batch pending.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.Execute(ctx)
	return err
}

// Execute is Run, additionally returning the saved batch and how its window
// was chosen.
func (s *Scheduler) Execute(ctx context.Context) (*Result, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	last, err := s.store.LastBatch(ctx)
	if err != nil {
		return nil, err
	}

	window, mode, err := s.nextWindow(last)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := validateWindow(window, now); err != nil {
		return nil, err
	}

	saved, err := s.store.Save(ctx, deletion.Batch{
		RequestTime: now,
		WindowStart: window.Start,
		WindowEnd:   window.End,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "requesting deletions",
		"batch_id", saved.ID,
		"window_start", window.Start,
		"window_end", window.End,
		"mode", mode,
	)

	if err := s.requester.Request(ctx, window.Start, window.End, saved.ID); err != nil {
		s.logger.WarnContext(ctx, "deletion request failed, batch left pending",
			"batch_id", saved.ID,
			"error", err,
		)
		return nil, err
	}

	return &Result{Batch: *saved.Clone(), Mode: mode}, nil
}

// nextWindow selects the window for the next batch from the last one.
func (s *Scheduler) nextWindow(last *deletion.Batch) (deletion.Window, Mode, error) {
	if last == nil {
		return s.config.InitialWindow(), ModeInitial, nil
	}

	if !last.IsComplete() {
		return deletion.Window{}, "", deletion.NewPrecedingBatchIncompleteError(last.ID)
	}

	if last.HasRemaining() {
		s.logger.Debug("records remain in previous window, reusing it",
			"previous_batch_id", last.ID,
			"remaining_in_window", *last.RemainingInWindow,
		)
		return last.Window(), ModeReuse, nil
	}

	start := last.WindowStart.Add(s.config.WindowLength)
	return deletion.Window{Start: start, End: start.Add(s.config.WindowLength)}, ModeAdvance, nil
}

// validateWindow rejects windows with either edge strictly after now.
// An edge equal to now is accepted.
func validateWindow(w deletion.Window, now time.Time) error {
	if w.Start.After(now) {
		return deletion.NewFutureWindowError(deletion.BoundStart, w.Start, now)
	}
	if w.End.After(now) {
		return deletion.NewFutureWindowError(deletion.BoundEnd, w.End, now)
	}
	return nil
}
