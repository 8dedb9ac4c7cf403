// Package tracing provides OpenTelemetry tracing integration.
//
// Init installs an SDK tracer provider whose finished spans are written to
// slog at debug level (TRACING_ENABLED=true); otherwise the global no-op
// provider is used and spans cost nothing.
//
// Spans emitted by the watcher:
//   - poll.cycle with poll.fetch, poll.detect and poll.notify children
//   - one server span per ops server request (GinMiddleware)
//
// Example usage:
//
//	shutdown := tracing.Init(tracing.Config{Enabled: true, Logger: logger})
//	defer shutdown(context.Background())
//
//	ctx, span := tracing.GetTracer().Start(ctx, "poll.cycle")
//	defer span.End()
package tracing
