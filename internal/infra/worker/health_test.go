package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shein-verse-bot/internal/usecase/notify"
	"shein-verse-bot/internal/usecase/poll"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubStatus struct{ st poll.Status }

func (s stubStatus) Status() poll.Status { return s.st }

type stubChannels struct{ statuses []notify.ChannelHealthStatus }

func (s stubChannels) GetChannelHealth() []notify.ChannelHealthStatus { return s.statuses }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOpsServer_Liveness(t *testing.T) {
	server := NewOpsServer(":0", testLogger(), nil, nil)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		rec := serve(t, server.Handler(), method, "/health")
		assert.Equal(t, http.StatusOK, rec.Code, method)
	}

	rec := serve(t, server.Handler(), http.MethodGet, "/health")
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestOpsServer_Readiness(t *testing.T) {
	server := NewOpsServer(":0", testLogger(), nil, nil)

	rec := serve(t, server.Handler(), http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not ready")

	server.SetReady(true)
	rec = serve(t, server.Handler(), http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	server.SetReady(false)
	rec = serve(t, server.Handler(), http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOpsServer_Status(t *testing.T) {
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	status := stubStatus{st: poll.Status{
		State:               "SLEEPING",
		Cycle:               12,
		ConsecutiveFailures: 0,
		Tracked:             48,
		LastSuccess:         &last,
		AlertsSent:          5,
	}}
	server := NewOpsServer(":0", testLogger(), status, nil)

	rec := serve(t, server.Handler(), http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "SLEEPING", got["state"])
	assert.Equal(t, float64(12), got["cycle"])
	assert.Equal(t, float64(48), got["tracked_products"])
	assert.Equal(t, "2026-03-01T10:00:00Z", got["last_success"])
	assert.NotContains(t, got, "last_alert")

	noStatus := NewOpsServer(":0", testLogger(), nil, nil)
	rec = serve(t, noStatus.Handler(), http.MethodGet, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOpsServer_Channels(t *testing.T) {
	tests := []struct {
		name     string
		statuses []notify.ChannelHealthStatus
		wantCode int
	}{
		{
			name: "TC-1: one healthy channel",
			statuses: []notify.ChannelHealthStatus{
				{Name: "telegram", Enabled: true},
				{Name: "discord", Enabled: true, CircuitBreakerOpen: true},
			},
			wantCode: http.StatusOK,
		},
		{
			name: "TC-2: every enabled circuit open",
			statuses: []notify.ChannelHealthStatus{
				{Name: "telegram", Enabled: true, CircuitBreakerOpen: true},
				{Name: "slack", Enabled: false},
			},
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "TC-3: no channels",
			statuses: nil,
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewOpsServer(":0", testLogger(), nil, stubChannels{statuses: tt.statuses})
			rec := serve(t, server.Handler(), http.MethodGet, "/health/channels")
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestOpsServer_Metrics(t *testing.T) {
	server := NewOpsServer(":0", testLogger(), nil, nil)
	serve(t, server.Handler(), http.MethodGet, "/health")

	rec := serve(t, server.Handler(), http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "worker_config_load_timestamp")
}

func TestOpsServer_NotFound(t *testing.T) {
	server := NewOpsServer(":0", testLogger(), nil, nil)
	rec := serve(t, server.Handler(), http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpsServer_StartAndShutdown(t *testing.T) {
	server := NewOpsServer("localhost:19093", testLogger(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://localhost:19093/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, http.ErrServerClosed))
	case <-time.After(6 * time.Second):
		t.Fatal("server did not stop")
	}
}
