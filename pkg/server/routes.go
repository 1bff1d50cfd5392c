package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"mercator-hq/erasure/pkg/deletion"
	"mercator-hq/erasure/pkg/deletion/completion"
	"mercator-hq/erasure/pkg/deletion/scheduler"
	"mercator-hq/erasure/pkg/telemetry/health"
)

// RunTrigger starts a scheduler run on demand.
type RunTrigger interface {
	Trigger(ctx context.Context) (*scheduler.Result, error)
}

// CompletionObserver is notified of every batch marked complete.
type CompletionObserver interface {
	ObserveCompletion(batch *deletion.Batch)
}

// Dependencies are the components served by the API.
type Dependencies struct {
	// Store serves batch reads. Required.
	Store deletion.Storage

	// Completer applies completion reports. Required.
	Completer *completion.Completer

	// Runner backs POST /runs. When nil the route is not mounted.
	Runner RunTrigger

	// Observer is notified after a successful completion. Optional.
	Observer CompletionObserver

	// Health backs /health and /ready. Defaults to a checker pinging Store.
	Health *health.Checker

	// Metrics serves MetricsPath. When nil the route is not mounted.
	Metrics http.Handler

	// MetricsPath defaults to "/metrics".
	MetricsPath string

	// Build is reported by /version.
	Build health.VersionInfo

	// AllowedOrigins enables CORS for browser dashboards. Empty disables
	// CORS headers.
	AllowedOrigins []string
}

// NewRouter builds the API handler.
func NewRouter(deps Dependencies) http.Handler {
	if deps.Health == nil {
		deps.Health = health.New(0)
		deps.Health.RegisterCheck("storage", health.StorageCheck(deps.Store))
	}

	h := &batchHandlers{
		store:     deps.Store,
		completer: deps.Completer,
		runner:    deps.Runner,
		observer:  deps.Observer,
	}

	r := chi.NewRouter()
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader, TraceIDHeader},
			MaxAge:         300,
		}))
	}
	r.Use(RecoveryMiddleware, RequestIDMiddleware, TracingMiddleware, LoggingMiddleware)

	r.Get("/health", deps.Health.LivenessHandler())
	r.Get("/ready", deps.Health.ReadinessHandler())
	r.Get("/version", health.VersionHandler(deps.Build.Version, deps.Build.Commit, deps.Build.BuildTime))
	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, deps.Metrics)
	}

	r.Route("/batches", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/latest", h.latest)
		r.Get("/{id}", h.get)
		r.Post("/{id}/completion", h.complete)
	})

	if deps.Runner != nil {
		r.Post("/runs", h.trigger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	return r
}
