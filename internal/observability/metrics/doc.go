// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the watcher's metrics:
//   - Ops server HTTP request metrics
//   - Watch metrics (products checked, changes by kind, alert decisions, fetch failures)
//   - Snapshot persistence (database) metrics
//
// All metrics are registered with the Prometheus default registry through
// promauto and exposed on the ops server's /metrics endpoint.
//
// Example usage:
//
//	import "shein-verse-bot/internal/observability/metrics"
//
//	func afterDetect(res detect.Result) {
//	    metrics.RecordProductsChecked(res.Checked)
//	    for _, ev := range res.Events {
//	        metrics.RecordChange(ev.Kind.String())
//	    }
//	}
package metrics
