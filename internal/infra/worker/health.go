package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shein-verse-bot/internal/observability/metrics"
	"shein-verse-bot/internal/observability/tracing"
	"shein-verse-bot/internal/usecase/notify"
	"shein-verse-bot/internal/usecase/poll"
)

// StatusSource reports the poll loop status. *poll.Scheduler implements it.
type StatusSource interface {
	Status() poll.Status
}

// ChannelHealthSource reports per-channel delivery health. notify.Service implements it.
type ChannelHealthSource interface {
	GetChannelHealth() []notify.ChannelHealthStatus
}

// OpsServer serves the operational endpoints of the bot:
//   - GET/HEAD /health: liveness probe (always 200 OK)
//   - GET /health/ready: readiness probe (200 once SetReady(true), 503 before)
//   - GET /health/channels: notification channel health
//   - GET /status: poll loop status
//   - GET /metrics: Prometheus metrics
//
// The server shuts down gracefully when the context passed to Start is canceled.
type OpsServer struct {
	addr     string
	logger   *slog.Logger
	isReady  *atomic.Bool
	status   StatusSource
	channels ChannelHealthSource
	engine   *gin.Engine
	server   *http.Server
}

// healthResponse is the JSON body of the probe endpoints.
type healthResponse struct {
	Status string `json:"status"`
}

// NewOpsServer creates the server. status and channels may be nil; their
// endpoints then answer 503.
func NewOpsServer(addr string, logger *slog.Logger, status StatusSource, channels ChannelHealthSource) *OpsServer {
	isReady := &atomic.Bool{}
	isReady.Store(false)

	h := &OpsServer{
		addr:     addr,
		logger:   logger,
		isReady:  isReady,
		status:   status,
		channels: channels,
	}
	h.engine = h.routes()
	return h
}

func (h *OpsServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), tracing.GinMiddleware(), requestMetrics())

	r.GET("/health", h.handleLiveness)
	r.HEAD("/health", h.handleLiveness)
	r.GET("/health/ready", h.handleReadiness)
	r.GET("/health/channels", h.handleChannels)
	r.GET("/status", h.handleStatus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Handler returns the HTTP handler, mainly for tests.
func (h *OpsServer) Handler() http.Handler {
	return h.engine
}

// Start serves until ctx is canceled, then shuts down with a 5-second grace
// period. It returns http.ErrServerClosed after a graceful shutdown.
func (h *OpsServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:              h.addr,
		Handler:           h.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("ops server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("ops server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("ops server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("ops server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return err
		}
		h.logger.Error("ops server failed", slog.Any("error", err))
		return err
	}
}

// SetReady sets the readiness reported by /health/ready.
func (h *OpsServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("ops server readiness changed", slog.Bool("ready", ready))
}

func (h *OpsServer) handleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

func (h *OpsServer) handleReadiness(c *gin.Context) {
	if !h.isReady.Load() {
		c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
		return
	}
	c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

func (h *OpsServer) handleStatus(c *gin.Context) {
	if h.status == nil {
		c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
		return
	}
	c.JSON(http.StatusOK, h.status.Status())
}

// handleChannels answers 503 when no enabled channel has a closed circuit.
func (h *OpsServer) handleChannels(c *gin.Context) {
	if h.channels == nil {
		c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
		return
	}
	statuses := h.channels.GetChannelHealth()

	healthy := false
	for _, s := range statuses {
		if s.Enabled && !s.CircuitBreakerOpen {
			healthy = true
			break
		}
	}
	code := http.StatusOK
	status := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	c.JSON(code, gin.H{"status": status, "channels": statuses})
}

// requestMetrics records every request by route template.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
