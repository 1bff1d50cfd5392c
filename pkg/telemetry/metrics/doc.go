// Package metrics exposes Prometheus metrics for deletion runs and batches.
//
// A Collector owns its own registry and implements scheduler.Observer, so it
// can be handed straight to a Runner:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	runner := scheduler.NewRunner(s, scheduler.RunnerConfig{
//	    Schedule: cfg.Deletion.Schedule,
//	    Observer: collector,
//	})
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Metrics
//
//   - <ns>_scheduler_runs_total{outcome}
//   - <ns>_scheduler_run_duration_seconds
//   - <ns>_batches_created_total{mode}
//   - <ns>_batches_completed_total
//   - <ns>_window_lag_seconds
//   - <ns>_remaining_in_window
package metrics
