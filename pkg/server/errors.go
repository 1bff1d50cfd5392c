package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/erasure/pkg/deletion"
	"mercator-hq/erasure/pkg/deletion/completion"
	"mercator-hq/erasure/pkg/deletion/scheduler"
	"mercator-hq/erasure/pkg/elite2"
)

// Error codes returned in ErrorResponse.
const (
	codeBadRequest       = "bad_request"
	codeValidation       = "validation_failed"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeAlreadyComplete  = "batch_already_complete"
	codeRunInProgress    = "run_in_progress"
	codePrecondition     = "precondition_failed"
	codeUpstream         = "system_of_record_error"
	codeInternal         = "internal_error"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BindError is returned when a request body cannot be decoded or fails
// validation.
type BindError struct {
	Field   string
	Message string
	// Validation is true when the body decoded but failed validation.
	Validation bool
}

func (e *BindError) Error() string {
	return e.Message
}

// statusFor maps domain errors to HTTP status, code and client message.
func statusFor(err error) (int, string, string) {
	var (
		bindErr *BindError
		reqErr  *elite2.RequestError
	)

	switch {
	case errors.As(err, &bindErr):
		if bindErr.Validation {
			return http.StatusUnprocessableEntity, codeValidation, bindErr.Message
		}
		return http.StatusBadRequest, codeBadRequest, bindErr.Message
	case errors.Is(err, deletion.ErrBatchNotFound):
		return http.StatusNotFound, codeNotFound, err.Error()
	case errors.Is(err, deletion.ErrBatchAlreadyComplete):
		return http.StatusConflict, codeAlreadyComplete, err.Error()
	case errors.Is(err, completion.ErrInvalidReport):
		return http.StatusUnprocessableEntity, codeValidation, err.Error()
	case errors.Is(err, scheduler.ErrRunInProgress):
		return http.StatusConflict, codeRunInProgress, err.Error()
	case deletion.IsPrecondition(err):
		return http.StatusUnprocessableEntity, codePrecondition, err.Error()
	case errors.As(err, &reqErr):
		return http.StatusBadGateway, codeUpstream, "system of record rejected the deletion request"
	default:
		return http.StatusInternalServerError, codeInternal, "An internal error occurred. Please try again later."
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
