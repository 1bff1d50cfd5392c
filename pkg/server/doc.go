// Package server provides the admin HTTP API for the deletion scheduler.
//
// # Routes
//
//   - GET  /batches?limit=N              - Most recent batches first
//   - GET  /batches/latest               - Most recent batch, 404 when none
//   - GET  /batches/{id}                 - One batch
//   - POST /batches/{id}/completion      - Record the system of record's report
//   - POST /runs                         - Trigger a scheduler run now
//   - GET  /health, /ready, /version     - Probes and build info
//   - GET  /metrics                      - Prometheus exposition
//
// A completion body looks like:
//
//	{"remainingInWindow": 0, "completedAt": "2021-06-01T03:00:00Z"}
//
// completedAt is optional and defaults to the time the report is received.
//
// # Errors
//
// Failures are returned as {"error": {"code": "...", "message": "..."}}.
// Unknown batches map to 404, already-complete batches and overlapping runs
// to 409, invalid reports and scheduler precondition failures to 422, and
// system of record failures to 502.
//
// # Middleware Chain
//
// Requests pass through (outermost first): recovery, request ID, logging.
// The request ID is attached to every log record written with the request
// context.
package server
