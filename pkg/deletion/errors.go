package deletion

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBatchNotFound is returned when a batch ID is unknown to the store.
	ErrBatchNotFound = errors.New("deletion batch not found")

	// ErrBatchAlreadyComplete is returned when completion is reported for
	// a batch that already has a completion time.
	ErrBatchAlreadyComplete = errors.New("deletion batch already complete")
)

// ConfigurationError reports a window configuration whose end does not come
// after its start, i.e. a non-positive window length.
type ConfigurationError struct {
	WindowStart time.Time
	WindowEnd   time.Time
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("deletion due window dates are illogical [start=%s, end=%s]",
		e.WindowStart.Format(time.RFC3339), e.WindowEnd.Format(time.RFC3339))
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(start, end time.Time) *ConfigurationError {
	return &ConfigurationError{WindowStart: start, WindowEnd: end}
}

// PrecedingBatchIncompleteError reports that the most recent batch has not
// completed, so no new batch may be created.
type PrecedingBatchIncompleteError struct {
	BatchID int64
}

// Error implements the error interface.
func (e *PrecedingBatchIncompleteError) Error() string {
	return fmt.Sprintf("previous referral (%d) did not complete", e.BatchID)
}

// NewPrecedingBatchIncompleteError creates a new PrecedingBatchIncompleteError.
func NewPrecedingBatchIncompleteError(batchID int64) *PrecedingBatchIncompleteError {
	return &PrecedingBatchIncompleteError{BatchID: batchID}
}

// WindowBound identifies which edge of a window failed validation.
type WindowBound string

const (
	// BoundStart is the window start.
	BoundStart WindowBound = "start"
	// BoundEnd is the window end.
	BoundEnd WindowBound = "end"
)

// FutureWindowError reports a window edge that lies after the current time.
type FutureWindowError struct {
	Bound WindowBound
	Value time.Time
	Now   time.Time
}

// Error implements the error interface.
func (e *FutureWindowError) Error() string {
	return fmt.Sprintf("deletion due date cannot be in the future, window %s date is not valid [%s=%s, now=%s]",
		e.Bound, e.Bound, e.Value.Format(time.RFC3339), e.Now.Format(time.RFC3339))
}

// NewFutureWindowError creates a new FutureWindowError.
func NewFutureWindowError(bound WindowBound, value, now time.Time) *FutureWindowError {
	return &FutureWindowError{Bound: bound, Value: value, Now: now}
}

// StorageError represents an error from a batch storage backend.
type StorageError struct {
	Backend   string // "memory", "sqlite", "postgres"
	Operation string // "save", "last_batch", "complete", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// IsPrecondition reports whether err is one of the scheduler's fatal
// precondition failures (configuration, outstanding batch, future window)
// rather than a collaborator failure.
func IsPrecondition(err error) bool {
	var (
		cfgErr    *ConfigurationError
		incErr    *PrecedingBatchIncompleteError
		futureErr *FutureWindowError
	)
	return errors.As(err, &cfgErr) || errors.As(err, &incErr) || errors.As(err, &futureErr)
}
