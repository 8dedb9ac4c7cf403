package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"shein-verse-bot/internal/pkg/config"
)

// WorkerMetrics provides Prometheus metrics for the polling loop.
// It embeds ConfigMetrics for configuration monitoring and adds cycle metrics.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total{field}
//   - worker_config_fallbacks_total{field}
//   - worker_config_fallback_active
//
// Poll metrics:
//   - worker_poll_cycles_total{status}: cycles by outcome (success, failure)
//   - worker_poll_cycle_duration_seconds: cycle duration, sleep excluded
//   - worker_poll_last_success_timestamp: Unix time of the last successful cycle
//   - worker_poll_consecutive_failures: current run of failed cycles
//   - worker_poll_degraded_alerts_total: degraded-health alerts sent
//
// WorkerMetrics satisfies the scheduler's Recorder interface.
type WorkerMetrics struct {
	*config.ConfigMetrics

	// PollCyclesTotal counts finished cycles by status.
	PollCyclesTotal *prometheus.CounterVec

	// PollCycleDurationSeconds measures fetch through flush.
	// Buckets cover a fast API response up to a fetch hitting its timeout.
	PollCycleDurationSeconds prometheus.Histogram

	// PollLastSuccessTimestamp is set when a cycle succeeds.
	PollLastSuccessTimestamp prometheus.Gauge

	// PollConsecutiveFailures is reset to zero by a successful cycle.
	PollConsecutiveFailures prometheus.Gauge

	// PollDegradedAlertsTotal counts degraded-health alerts.
	PollDegradedAlertsTotal prometheus.Counter
}

// NewWorkerMetrics creates and registers the worker metrics.
// It must be called once per process; promauto panics on duplicates.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		PollCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_poll_cycles_total",
			Help: "Total number of poll cycles by status (success/failure)",
		}, []string{"status"}),

		PollCycleDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_poll_cycle_duration_seconds",
			Help:    "Duration of a poll cycle in seconds, sleep excluded",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		PollLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_poll_last_success_timestamp",
			Help: "Unix timestamp of the last successful poll cycle",
		}),

		PollConsecutiveFailures: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_poll_consecutive_failures",
			Help: "Number of consecutive failed poll cycles",
		}),

		PollDegradedAlertsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_poll_degraded_alerts_total",
			Help: "Total number of degraded-health alerts sent",
		}),
	}
}

// RecordCycle records a finished cycle. A successful cycle also updates the
// last-success timestamp.
//
// Example:
//
//	start := time.Now()
//	report := scheduler.RunCycle(ctx)
//	metrics.RecordCycle(report.OK, time.Since(start))
func (m *WorkerMetrics) RecordCycle(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.PollCyclesTotal.WithLabelValues(status).Inc()
	m.PollCycleDurationSeconds.Observe(duration.Seconds())
	if success {
		m.PollLastSuccessTimestamp.SetToCurrentTime()
	}
}

// SetConsecutiveFailures sets the current failure streak.
func (m *WorkerMetrics) SetConsecutiveFailures(n int) {
	m.PollConsecutiveFailures.Set(float64(n))
}

// RecordDegradedAlert counts a degraded-health alert.
func (m *WorkerMetrics) RecordDegradedAlert() {
	m.PollDegradedAlertsTotal.Inc()
}
