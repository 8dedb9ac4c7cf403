package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return exporter
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	return r
}

func TestGinMiddleware_CreatesSpan(t *testing.T) {
	exporter := installRecorder(t)

	rr := httptest.NewRecorder()
	newRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /health", spans[0].Name)
	assert.Equal(t, spans[0].SpanContext.TraceID().String(), rr.Header().Get("X-Trace-Id"))
	assert.NotEqual(t, codes.Error, spans[0].Status.Code)
}

func TestGinMiddleware_PropagatesTraceContext(t *testing.T) {
	exporter := installRecorder(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	newRouter().ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext.TraceID().String())
}

func TestGinMiddleware_MarksServerErrors(t *testing.T) {
	exporter := installRecorder(t)

	newRouter().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestInit(t *testing.T) {
	t.Run("TC-1: disabled keeps provider", func(t *testing.T) {
		prev := otel.GetTracerProvider()
		shutdown := Init(Config{Enabled: false})
		assert.NoError(t, shutdown(context.Background()))
		assert.Equal(t, prev, otel.GetTracerProvider())
	})

	t.Run("TC-2: enabled logs finished spans", func(t *testing.T) {
		prev := otel.GetTracerProvider()
		t.Cleanup(func() { otel.SetTracerProvider(prev) })

		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		shutdown := Init(Config{Enabled: true, Logger: logger})

		_, span := GetTracer().Start(context.Background(), "poll.cycle")
		span.End()
		require.NoError(t, shutdown(context.Background()))

		assert.True(t, strings.Contains(buf.String(), `"span":"poll.cycle"`), buf.String())
	})
}
