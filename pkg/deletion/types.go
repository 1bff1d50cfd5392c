package deletion

import (
	"context"
	"time"
)

// Batch is the audit record of one deletion request cycle.
//
// Values returned by a store are independent copies: mutating a returned
// Batch never affects stored state or other readers.
type Batch struct {
	// ID is assigned by the store on save. Zero means the batch has not
	// been persisted yet.
	ID int64 `json:"batchId"`

	// RequestTime is when the batch was created.
	RequestTime time.Time `json:"requestDateTime"`

	// WindowStart and WindowEnd bound the due-for-deletion range
	// [WindowStart, WindowEnd).
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`

	// CompletionTime is set by the completion process once the system of
	// record has finished processing the batch. Nil while pending.
	CompletionTime *time.Time `json:"completionDateTime,omitempty"`

	// RemainingInWindow is the number of eligible records still
	// unprocessed inside the window, reported on completion.
	RemainingInWindow *int `json:"remainingInWindow,omitempty"`
}

// IsComplete reports whether the batch has a completion time.
func (b *Batch) IsComplete() bool {
	return b.CompletionTime != nil
}

// HasRemaining reports whether the completion process reported records
// still to be processed in this batch's window.
func (b *Batch) HasRemaining() bool {
	return b.RemainingInWindow != nil && *b.RemainingInWindow > 0
}

// Window returns the batch's window.
func (b *Batch) Window() Window {
	return Window{Start: b.WindowStart, End: b.WindowEnd}
}

// Status returns "complete" or "pending".
func (b *Batch) Status() string {
	if b.IsComplete() {
		return StatusComplete
	}
	return StatusPending
}

// Clone returns a deep copy of the batch.
func (b *Batch) Clone() *Batch {
	c := *b
	if b.CompletionTime != nil {
		t := *b.CompletionTime
		c.CompletionTime = &t
	}
	if b.RemainingInWindow != nil {
		n := *b.RemainingInWindow
		c.RemainingInWindow = &n
	}
	return &c
}

// Batch statuses.
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Length returns End - Start.
func (w Window) Length() time.Duration {
	return w.End.Sub(w.Start)
}

// WindowConfig fixes where windowing begins and how wide every window is.
type WindowConfig struct {
	// InitialWindowStart is the start of the very first window.
	InitialWindowStart time.Time

	// WindowLength is the width of every window. Must be positive.
	WindowLength time.Duration
}

// InitialWindow returns the first window.
func (c WindowConfig) InitialWindow() Window {
	return Window{
		Start: c.InitialWindowStart,
		End:   c.InitialWindowStart.Add(c.WindowLength),
	}
}

// Validate returns a *ConfigurationError when the window length is not
// strictly positive.
func (c WindowConfig) Validate() error {
	if c.WindowLength <= 0 {
		return NewConfigurationError(c.InitialWindowStart, c.InitialWindowStart.Add(c.WindowLength))
	}
	return nil
}

// BatchStore is the persistence port used by the scheduler.
type BatchStore interface {
	// LastBatch returns the batch with the greatest RequestTime, or nil
	// if no batch has ever been saved.
	LastBatch(ctx context.Context) (*Batch, error)

	// Save persists a new batch and returns it with ID populated.
	Save(ctx context.Context, batch Batch) (*Batch, error)
}

// CompletionStore is the persistence port used by the completion process.
type CompletionStore interface {
	// Get returns the batch with the given ID or ErrBatchNotFound.
	Get(ctx context.Context, id int64) (*Batch, error)

	// MarkComplete records completion for a pending batch. It returns
	// ErrBatchNotFound for unknown IDs and ErrBatchAlreadyComplete if the
	// batch already has a completion time; existing completion data is
	// never overwritten.
	MarkComplete(ctx context.Context, id int64, completedAt time.Time, remainingInWindow int) error
}

// Storage is implemented by every storage backend.
// Implementations must be safe for concurrent use.
type Storage interface {
	BatchStore
	CompletionStore

	// List returns up to limit batches, most recent request first.
	// A limit <= 0 applies the backend default.
	List(ctx context.Context, limit int) ([]*Batch, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// Requester issues deletion requests to the system of record.
type Requester interface {
	// Request asks the system of record to process records due for
	// deletion in [windowStart, windowEnd) under the given batch ID.
	Request(ctx context.Context, windowStart, windowEnd time.Time, batchID int64) error
}

// RequesterFunc adapts a function to the Requester interface.
type RequesterFunc func(ctx context.Context, windowStart, windowEnd time.Time, batchID int64) error

// Request calls f.
func (f RequesterFunc) Request(ctx context.Context, windowStart, windowEnd time.Time, batchID int64) error {
	return f(ctx, windowStart, windowEnd, batchID)
}
