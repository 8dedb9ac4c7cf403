package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/observability/logging"
)

const (
	maxErrorBody      = 64 * 1024
	defaultRetryAfter = 5 * time.Second
)

// webhook posts JSON payloads to one incoming-webhook URL. Discord and Slack
// differ only in the payload they render and the service name in errors.
type webhook struct {
	service string
	url     string
	client  *http.Client
	limiter *RateLimiter
	render  func(entity.Message) any
}

func newWebhook(service, url string, timeout time.Duration, limiter *RateLimiter, render func(entity.Message) any) *webhook {
	return &webhook{
		service: service,
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		render:  render,
	}
}

// notify waits for the rate limiter, then makes one POST.
func (w *webhook) notify(ctx context.Context, msg entity.Message) error {
	requestID := RequestIDFromContext(ctx)

	waited, err := w.limiter.Allow(ctx)
	if err != nil {
		return fmt.Errorf("%s rate limiter: %w", w.service, err)
	}

	if err := w.post(ctx, w.render(msg)); err != nil {
		slog.Warn(w.service+" notification failed",
			slog.String("request_id", requestID),
			slog.String("kind", string(msg.Kind)),
			logging.ErrorAttr(err))
		return err
	}

	slog.Debug(w.service+" notification sent",
		slog.String("request_id", requestID),
		slog.String("kind", string(msg.Kind)),
		slog.Duration("rate_limit_wait", waited))
	return nil
}

func (w *webhook) post(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", w.service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", w.service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", w.service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var wait time.Duration
	if resp.StatusCode == http.StatusTooManyRequests {
		wait = retryAfter(resp.Header, body)
	}
	return classifyStatus(w.service, resp.StatusCode, string(body), wait)
}

// retryAfter reads the wait from a 429 answer: Discord's retry_after body
// field (seconds, fractional) first, then the Retry-After header.
func retryAfter(header http.Header, body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter * float64(time.Second))
	}
	if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultRetryAfter
}
