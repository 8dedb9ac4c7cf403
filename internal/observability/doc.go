// Package observability groups the watcher's logging, metrics, SLO and tracing helpers.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - slo: Freshness and delivery objectives as Prometheus gauges
//   - tracing: OpenTelemetry tracer, provider setup and ops server middleware
//
// Example usage:
//
//	import (
//	    "shein-verse-bot/internal/observability/logging"
//	    "shein-verse-bot/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("watcher started")
//
//	    metrics.UpdateSnapshotSize(store.Len())
//	}
package observability
