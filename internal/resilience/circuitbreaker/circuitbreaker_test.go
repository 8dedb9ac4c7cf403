package circuitbreaker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shein-verse-bot/internal/observability/metrics"
)

var errUpstream = errors.New("upstream 503")

func fail(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Run(func() error { return errUpstream })
	}
}

func TestCircuitBreaker_ExecuteAndRun(t *testing.T) {
	cb := New(CatalogConfig("test-exec"))

	got, err := cb.Execute(func() (interface{}, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	assert.NoError(t, cb.Run(func() error { return nil }))
	assert.ErrorIs(t, cb.Run(func() error { return errUpstream }), errUpstream)
	assert.Equal(t, "test-exec", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := New(CatalogConfig("test-trip"))

	fail(cb, 4)
	assert.False(t, cb.IsOpen(), "four failures stay below MinRequests")

	fail(cb, 1)
	require.True(t, cb.IsOpen())

	called := false
	err := cb.Run(func() error { called = true; return nil })
	assert.False(t, called)
	assert.True(t, IsOpenError(err))
	assert.True(t, IsOpenError(fmt.Errorf("catalog: %w", err)))

	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(metrics.CircuitState.WithLabelValues("test-trip")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CircuitTransitionsTotal.WithLabelValues("test-trip", "open")))
}

func TestCircuitBreaker_MixedResultsStayClosed(t *testing.T) {
	cb := New(NotifyChannelConfig("test-mixed"))

	fail(cb, 4)
	_ = cb.Run(func() error { return nil })
	fail(cb, 1)

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cfg := DBConfig()
	cfg.Name = "test-recover"
	cfg.Timeout = 50 * time.Millisecond
	cfg.MaxRequests = 1
	cb := New(cfg)

	fail(cb, 5)
	require.True(t, cb.IsOpen())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	require.NoError(t, cb.Run(func() error { return nil }))
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CircuitTransitionsTotal.WithLabelValues("test-recover", "half-open")))
}

func TestConfigs(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{CatalogConfig("catalog-html"), "catalog-html"},
		{NotifyChannelConfig("discord"), "notify-discord"},
		{DBConfig(), "snapshot-db"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Name)
			assert.NotZero(t, tt.cfg.MinRequests)
			assert.Positive(t, tt.cfg.Timeout)
			assert.False(t, tt.cfg.readyToTrip(gobreaker.Counts{}))
		})
	}
}
