package elite2

import (
	"errors"
	"fmt"
)

// ErrMissingTotalRecords is returned when a paged response lacks the
// Total-Records header.
var ErrMissingTotalRecords = errors.New("response did not contain Total-Records header")

// RequestError represents a failed call to the system of record.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int    // zero when no response was received
	Body       string // truncated response body, if any
	Cause      error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("elite2 %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("elite2 %s %s: %v", e.Method, e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RequestError) Unwrap() error {
	return e.Cause
}
