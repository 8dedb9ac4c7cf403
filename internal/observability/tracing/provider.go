package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config controls tracing setup.
type Config struct {
	Enabled bool

	// Logger receives one debug entry per finished span. Nil means slog.Default().
	Logger *slog.Logger
}

// Init installs an SDK tracer provider that logs finished spans through slog.
// When tracing is disabled the global no-op provider stays in place.
// The returned function flushes and stops the provider.
func Init(cfg Config) func(context.Context) error {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewLogSpanProcessor(logger)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("tracing enabled", slog.String("exporter", "slog"))
	return tp.Shutdown
}

// LogSpanProcessor writes finished spans to a slog logger.
type LogSpanProcessor struct {
	logger *slog.Logger
}

// NewLogSpanProcessor creates a LogSpanProcessor.
func NewLogSpanProcessor(logger *slog.Logger) *LogSpanProcessor {
	return &LogSpanProcessor{logger: logger}
}

func (p *LogSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *LogSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	attrs := []any{
		slog.String("span", s.Name()),
		slog.String("trace_id", s.SpanContext().TraceID().String()),
		slog.String("span_id", s.SpanContext().SpanID().String()),
		slog.Duration("duration", s.EndTime().Sub(s.StartTime())),
		slog.String("status", s.Status().Code.String()),
	}
	if s.Parent().IsValid() {
		attrs = append(attrs, slog.String("parent_span_id", s.Parent().SpanID().String()))
	}
	for _, kv := range s.Attributes() {
		attrs = append(attrs, slog.String("attr."+string(kv.Key), kv.Value.Emit()))
	}
	p.logger.Debug("span finished", attrs...)
}

func (p *LogSpanProcessor) Shutdown(context.Context) error { return nil }

func (p *LogSpanProcessor) ForceFlush(context.Context) error { return nil }
