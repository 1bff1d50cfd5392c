package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/erasure/pkg/config"
	"mercator-hq/erasure/pkg/deletion"
	"mercator-hq/erasure/pkg/deletion/scheduler"
)

// Collector records scheduler and batch metrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry
	now      func() time.Time

	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	batchesCreated  *prometheus.CounterVec
	batchesComplete prometheus.Counter
	windowLag       prometheus.Gauge
	remaining       prometheus.Gauge
}

// NewCollector creates a Collector registering into registry. A nil
// registry creates a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = config.DefaultMetricsNamespace
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
		now:      time.Now,

		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduler runs by outcome.",
		}, []string{"outcome"}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of scheduler runs that acquired the run lock.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		batchesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "batches_created_total",
			Help:      "Deletion batches created, by how the window was chosen.",
		}, []string{"mode"}),

		batchesComplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "batches_completed_total",
			Help:      "Deletion batches marked complete.",
		}),

		windowLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "window_lag_seconds",
			Help:      "Time between the end of the most recently requested window and the request.",
		}),

		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "remaining_in_window",
			Help:      "Records left unprocessed in the most recently completed batch's window.",
		}),
	}

	registry.MustRegister(
		c.runsTotal,
		c.runDuration,
		c.batchesCreated,
		c.batchesComplete,
		c.windowLag,
		c.remaining,
	)

	// Expose every outcome from the first scrape.
	for _, outcome := range []string{
		scheduler.OutcomeSuccess,
		scheduler.OutcomeSkipped,
		scheduler.OutcomePrecondition,
		scheduler.OutcomeError,
	} {
		c.runsTotal.WithLabelValues(outcome)
	}

	return c
}

// ObserveRun implements scheduler.Observer.
func (c *Collector) ObserveRun(outcome string, duration time.Duration, result *scheduler.Result) {
	if !c.config.Enabled {
		return
	}

	c.runsTotal.WithLabelValues(outcome).Inc()
	// Runs that never held the lock report no duration.
	if outcome != scheduler.OutcomeSkipped && duration > 0 {
		c.runDuration.Observe(duration.Seconds())
	}
	if result != nil {
		c.batchesCreated.WithLabelValues(string(result.Mode)).Inc()
		c.windowLag.Set(result.Batch.RequestTime.Sub(result.Batch.WindowEnd).Seconds())
	}
}

// ObserveCompletion records a batch marked complete.
func (c *Collector) ObserveCompletion(batch *deletion.Batch) {
	if !c.config.Enabled || batch == nil {
		return
	}

	c.batchesComplete.Inc()
	if batch.RemainingInWindow != nil {
		c.remaining.Set(float64(*batch.RemainingInWindow))
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
