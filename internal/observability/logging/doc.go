// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used by the watcher.
//
// Key features:
//   - JSON and text output formats
//   - Poll cycle tagging (cycle number and cycle id)
//   - Context-aware logging
//   - Configurable log levels through LOG_LEVEL
//
// Example usage:
//
//	import "shein-verse-bot/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    slog.SetDefault(logger)
//	    logger.Info("watcher started", slog.Duration("interval", 30*time.Second))
//	}
//
//	func runCycle(ctx context.Context, cycle int64, id string) {
//	    logger := logging.WithCycle(logging.FromContext(ctx), cycle, id)
//	    logger.Info("cycle started")
//	}
package logging
