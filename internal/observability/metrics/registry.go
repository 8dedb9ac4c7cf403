// Package metrics holds the process-wide Prometheus collectors of the watcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ops server.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Requests served by the ops server",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Ops server request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Catalog polling and change detection.
var (
	ProductsCheckedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watch_products_checked_total",
		Help: "Products compared against the snapshot",
	})

	// ChangesTotal is labelled by change kind. UNCHANGED is never recorded.
	ChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watch_changes_total",
		Help: "Product changes by kind",
	}, []string{"kind"})

	// AlertsTotal status is one of sent, failed, deferred, suppressed.
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watch_alerts_total",
		Help: "Alert decisions by status",
	}, []string{"status"})

	MalformedRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watch_malformed_records_total",
		Help: "Catalog records skipped as malformed",
	})

	FetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watch_fetch_failures_total",
		Help: "Failed catalog fetches by reason",
	}, []string{"reason"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "watch_fetch_duration_seconds",
		Help:    "Catalog strategy attempt latency",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"strategy", "status"})

	SnapshotSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watch_snapshot_products",
		Help: "Products currently held in the snapshot",
	})
)

// Snapshot persistence and circuit breakers.
var (
	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Snapshot database operation latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	}, []string{"operation"})

	// CircuitState is 0 closed, 1 half-open, 2 open, matching gobreaker.State.
	CircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"circuit"})

	CircuitTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_transitions_total",
		Help: "Circuit breaker state changes by target state",
	}, []string{"circuit", "to"})
)

// RecordHTTPRequest records one ops server request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
