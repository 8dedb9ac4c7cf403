package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/infra/notifier"
	"shein-verse-bot/internal/observability/logging"
	"shein-verse-bot/internal/resilience/circuitbreaker"
)

const defaultSendTimeout = 30 * time.Second

// Service delivers a message to every enabled channel.
type Service interface {
	// Deliver sends msg to all enabled channels concurrently and blocks until
	// every channel has answered. The delivery counts as successful when at
	// least one channel accepted the message.
	Deliver(ctx context.Context, msg entity.Message) DeliveryResult

	// GetChannelHealth returns the health status of all notification channels.
	// The returned data is safe for concurrent access.
	GetChannelHealth() []ChannelHealthStatus

	// EnabledChannels returns the names of enabled channels in configuration order.
	EnabledChannels() []string
}

// DeliveryResult is the outcome of one Deliver call.
type DeliveryResult struct {
	OK          bool
	ErrorDetail string

	// Retryable is false when every failure was final (client errors, open circuits).
	Retryable bool

	// RetryAfter is the longest wait requested by a rate-limited channel.
	RetryAfter time.Duration

	Channels []ChannelResult
}

// ChannelResult is the per-channel part of a DeliveryResult.
type ChannelResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Name               string     `json:"name"`
	Enabled            bool       `json:"enabled"`
	CircuitBreakerOpen bool       `json:"circuit_breaker_open"`
	State              string     `json:"state"`
	LastError          string     `json:"last_error,omitempty"`
	LastSuccess        *time.Time `json:"last_success,omitempty"`
}

type channelHealth struct {
	breaker     *circuitbreaker.CircuitBreaker
	mu          sync.Mutex
	lastError   string
	lastSuccess time.Time
}

type service struct {
	channels      []Channel
	health        map[string]*channelHealth
	maxConcurrent int
	sendTimeout   time.Duration
}

// NewService creates a notification service over channels.
//
// Parameters:
//   - channels: Delivery channels; disabled ones are kept for health reporting
//   - maxConcurrent: Maximum channels sent to at once (<= 0 means unlimited)
//   - sendTimeout: Upper bound for one channel attempt (<= 0 means 30s)
func NewService(channels []Channel, maxConcurrent int, sendTimeout time.Duration) Service {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	svc := &service{
		channels:      channels,
		health:        make(map[string]*channelHealth, len(channels)),
		maxConcurrent: maxConcurrent,
		sendTimeout:   sendTimeout,
	}

	enabled := 0
	for _, ch := range channels {
		svc.health[ch.Name()] = &channelHealth{
			breaker: circuitbreaker.New(circuitbreaker.NotifyChannelConfig(ch.Name())),
		}
		if ch.IsEnabled() {
			enabled++
		}
	}
	SetChannelsEnabled(float64(enabled))

	return svc
}

// Deliver implements Service.Deliver.
func (s *service) Deliver(ctx context.Context, msg entity.Message) DeliveryResult {
	requestID := notifier.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
		ctx = notifier.WithRequestID(ctx, requestID)
	}

	var enabled []Channel
	for _, ch := range s.channels {
		if ch.IsEnabled() {
			enabled = append(enabled, ch)
		} else {
			RecordDropped(ch.Name(), "disabled")
		}
	}
	if len(enabled) == 0 {
		return DeliveryResult{ErrorDetail: ErrNoChannels.Error()}
	}

	results := make([]ChannelResult, len(enabled))
	g := new(errgroup.Group)
	if s.maxConcurrent > 0 {
		g.SetLimit(s.maxConcurrent)
	}
	for i, ch := range enabled {
		i, ch := i, ch
		g.Go(func() error {
			results[i] = s.sendToChannel(ctx, requestID, ch, msg)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(results)
}

// sendToChannel runs one attempt through the channel's circuit breaker.
func (s *service) sendToChannel(ctx context.Context, requestID string, ch Channel, msg entity.Message) (res ChannelResult) {
	name := ch.Name()
	res.Name = name

	IncrementActiveDeliveries()
	defer DecrementActiveDeliveries()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in notification channel",
				slog.String("request_id", requestID),
				slog.String("channel", name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			res.Err = fmt.Errorf("channel %s panicked: %v", name, r)
		}
	}()

	health := s.health[name]
	wasOpen := health.breaker.IsOpen()

	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	start := time.Now()
	RecordDispatch(name)

	err := health.breaker.Run(func() error {
		return ch.Send(ctx, msg)
	})
	res.Duration = time.Since(start)

	if circuitbreaker.IsOpenError(err) {
		RecordDropped(name, "circuit_open")
		res.Err = fmt.Errorf("%s: %w", name, ErrCircuitBreakerOpen)
		slog.Warn("Channel skipped: circuit breaker open",
			slog.String("request_id", requestID),
			slog.String("channel", name))
		health.record(res.Err, start)
		return res
	}
	if !wasOpen && health.breaker.IsOpen() {
		RecordCircuitBreakerOpen(name)
	}

	health.record(err, start)
	if err != nil {
		if _, limited := notifier.RetryAfter(err); limited {
			RecordRateLimitHit(name)
		}
		RecordFailure(name, res.Duration)
		slog.Warn("Channel delivery failed",
			slog.String("request_id", requestID),
			slog.String("channel", name),
			slog.String("kind", string(msg.Kind)),
			slog.Duration("send_duration", res.Duration),
			logging.ErrorAttr(err))
		res.Err = err
		return res
	}

	RecordSuccess(name, res.Duration)
	slog.Info("Channel delivery succeeded",
		slog.String("request_id", requestID),
		slog.String("channel", name),
		slog.String("kind", string(msg.Kind)),
		slog.Duration("send_duration", res.Duration))
	return res
}

func (h *channelHealth) record(err error, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.lastError = err.Error()
		return
	}
	h.lastError = ""
	h.lastSuccess = at
}

// summarize folds per-channel results into one DeliveryResult.
func summarize(results []ChannelResult) DeliveryResult {
	out := DeliveryResult{Channels: results}
	var details []string
	for _, r := range results {
		if r.Err == nil {
			out.OK = true
			continue
		}
		details = append(details, fmt.Sprintf("%s: %v", r.Name, r.Err))
		if errors.Is(r.Err, ErrCircuitBreakerOpen) || !notifier.IsRetryable(r.Err) {
			continue
		}
		out.Retryable = true
		if wait, ok := notifier.RetryAfter(r.Err); ok && wait > out.RetryAfter {
			out.RetryAfter = wait
		}
	}
	if out.OK {
		out.Retryable = false
		out.RetryAfter = 0
	}
	out.ErrorDetail = strings.Join(details, "; ")
	return out
}

// GetChannelHealth implements Service.GetChannelHealth.
func (s *service) GetChannelHealth() []ChannelHealthStatus {
	statuses := make([]ChannelHealthStatus, 0, len(s.channels))
	for _, ch := range s.channels {
		health := s.health[ch.Name()]

		health.mu.Lock()
		status := ChannelHealthStatus{
			Name:               ch.Name(),
			Enabled:            ch.IsEnabled(),
			CircuitBreakerOpen: health.breaker.IsOpen(),
			State:              health.breaker.State().String(),
			LastError:          health.lastError,
		}
		if !health.lastSuccess.IsZero() {
			t := health.lastSuccess
			status.LastSuccess = &t
		}
		health.mu.Unlock()

		statuses = append(statuses, status)
	}
	sort.SliceStable(statuses, func(i, j int) bool { return statuses[i].Enabled && !statuses[j].Enabled })
	return statuses
}

// EnabledChannels implements Service.EnabledChannels.
func (s *service) EnabledChannels() []string {
	var names []string
	for _, ch := range s.channels {
		if ch.IsEnabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}
