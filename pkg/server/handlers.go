package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/erasure/pkg/deletion"
	"mercator-hq/erasure/pkg/deletion/completion"
	"mercator-hq/erasure/pkg/deletion/scheduler"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// BatchResponse is the wire form of a deletion batch.
type BatchResponse struct {
	ID                int64      `json:"batchId"`
	Status            string     `json:"status"`
	RequestTime       time.Time  `json:"requestDateTime"`
	WindowStart       time.Time  `json:"windowStart"`
	WindowEnd         time.Time  `json:"windowEnd"`
	CompletionTime    *time.Time `json:"completionDateTime,omitempty"`
	RemainingInWindow *int       `json:"remainingInWindow,omitempty"`
}

// RunResponse is returned by POST /runs.
type RunResponse struct {
	Mode  scheduler.Mode `json:"mode"`
	Batch BatchResponse  `json:"batch"`
}

// CompletionRequest is the body of POST /batches/{id}/completion.
type CompletionRequest struct {
	RemainingInWindow *int       `json:"remainingInWindow" validate:"required,min=0"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

func newBatchResponse(b *deletion.Batch) BatchResponse {
	return BatchResponse{
		ID:                b.ID,
		Status:            b.Status(),
		RequestTime:       b.RequestTime,
		WindowStart:       b.WindowStart,
		WindowEnd:         b.WindowEnd,
		CompletionTime:    b.CompletionTime,
		RemainingInWindow: b.RemainingInWindow,
	}
}

type batchHandlers struct {
	store     deletion.Storage
	completer *completion.Completer
	runner    RunTrigger
	observer  CompletionObserver
}

func (h *batchHandlers) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, codeBadRequest,
				"limit must be an integer between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		limit = n
	}

	batches, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		resp = append(resp, newBatchResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *batchHandlers) latest(w http.ResponseWriter, r *http.Request) {
	last, err := h.store.LastBatch(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if last == nil {
		writeError(w, http.StatusNotFound, codeNotFound, "no deletion batches yet")
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse(last))
}

func (h *batchHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}

	b, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse(b))
}

func (h *batchHandlers) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}

	req, err := decodeJSON[CompletionRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	report := completion.Report{RemainingInWindow: *req.RemainingInWindow}
	if req.CompletedAt != nil {
		report.CompletedAt = *req.CompletedAt
	}

	b, err := h.completer.Complete(r.Context(), id, report)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.observer != nil {
		h.observer.ObserveCompletion(b)
	}
	writeJSON(w, http.StatusOK, newBatchResponse(b))
}

func (h *batchHandlers) trigger(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.Trigger(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RunResponse{
		Mode:  result.Mode,
		Batch: newBatchResponse(&result.Batch),
	})
}

// fail writes err as an ErrorResponse. Unexpected errors are logged; the
// client only sees a generic message.
func (h *batchHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, code, msg)
}

func batchID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "batch id must be a positive integer")
		return 0, false
	}
	return id, true
}
