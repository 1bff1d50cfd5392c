// Package tracing wires OpenTelemetry tracing for erasure.
//
// New installs a global tracer provider exporting over OTLP/gRPC when
// tracing is enabled. Instrumented code calls the package-level Start,
// which resolves the global provider and so costs a noop span when
// tracing is disabled:
//
//	ctx, span := tracing.Start(ctx, "scheduler.run")
//	defer func() { tracing.End(span, err) }()
//
// Trace context crosses process boundaries as W3C traceparent headers:
// Extract on inbound API requests, Inject on calls to the system of record.
//
// Configuration:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: localhost:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.25
package tracing
