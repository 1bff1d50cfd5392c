// Package completion records the outcome reported by the system of record
// for a deletion batch.
//
// This is the only writer of Batch.CompletionTime and
// Batch.RemainingInWindow. The scheduler reads those fields on its next run
// to decide whether to reuse the window or advance.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/erasure/pkg/deletion"
)

// ErrInvalidReport is wrapped by errors describing a malformed report.
var ErrInvalidReport = errors.New("invalid completion report")

// Report is the system of record's result for one batch.
type Report struct {
	// CompletedAt is when processing finished. Zero means now.
	CompletedAt time.Time

	// RemainingInWindow is the number of eligible records left
	// unprocessed in the batch's window. Must not be negative.
	RemainingInWindow int
}

// Completer applies completion reports to stored batches.
type Completer struct {
	store  deletion.CompletionStore
	clock  deletion.Clock
	logger *slog.Logger
}

// New creates a Completer. A nil clock uses the system clock.
func New(store deletion.CompletionStore, clock deletion.Clock) *Completer {
	if clock == nil {
		clock = deletion.SystemClock{}
	}
	return &Completer{
		store:  store,
		clock:  clock,
		logger: slog.Default().With("component", "deletion.completion"),
	}
}

// Complete marks batch id complete and returns the updated batch.
//
// It returns deletion.ErrBatchNotFound for unknown batches,
// deletion.ErrBatchAlreadyComplete when completion was already recorded,
// and an error wrapping ErrInvalidReport for negative counts or a
// completion time before the batch was requested.
func (c *Completer) Complete(ctx context.Context, id int64, report Report) (*deletion.Batch, error) {
	if report.RemainingInWindow < 0 {
		return nil, fmt.Errorf("%w: remaining in window must not be negative, got %d",
			ErrInvalidReport, report.RemainingInWindow)
	}

	batch, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch.IsComplete() {
		return nil, deletion.ErrBatchAlreadyComplete
	}

	completedAt := report.CompletedAt
	if completedAt.IsZero() {
		completedAt = c.clock.Now()
	}
	if completedAt.Before(batch.RequestTime) {
		return nil, fmt.Errorf("%w: completion time %s precedes request time %s",
			ErrInvalidReport, completedAt.Format(time.RFC3339), batch.RequestTime.Format(time.RFC3339))
	}

	if err := c.store.MarkComplete(ctx, id, completedAt, report.RemainingInWindow); err != nil {
		return nil, err
	}

	c.logger.Info("deletion batch completed",
		"batch_id", id,
		"remaining_in_window", report.RemainingInWindow,
		"window_start", batch.WindowStart,
		"window_end", batch.WindowEnd,
	)

	remaining := report.RemainingInWindow
	batch.CompletionTime = &completedAt
	batch.RemainingInWindow = &remaining
	return batch, nil
}
