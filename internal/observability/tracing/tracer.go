package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "shein-verse-bot"

// GetTracer returns the tracer for creating spans. It resolves the global
// provider on every call so a provider installed by Init is always used.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "poll.fetch")
//	defer span.End()
func GetTracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(instrumentationName)
}
