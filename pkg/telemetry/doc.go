// Package telemetry groups erasure's observability packages.
//
//   - logging: structured slog logging with secret redaction and run,
//     request and trace IDs taken from the context
//   - metrics: Prometheus collectors for scheduler runs and completions
//   - tracing: OpenTelemetry spans exported over OTLP
//   - health: liveness and readiness checks for the admin API
package telemetry
