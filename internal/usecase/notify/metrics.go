package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Per-channel delivery metrics. A message fanned out to three channels counts
// three attempts.
var (
	deliveryDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "channel_delivery_dispatched_total",
		Help: "Delivery attempts started per channel",
	}, []string{"channel"})

	// status is success or failure.
	deliverySentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "channel_delivery_total",
		Help: "Finished delivery attempts per channel and status",
	}, []string{"channel", "status"})

	deliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "channel_delivery_duration_seconds",
		Help:    "Delivery attempt latency per channel",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
	}, []string{"channel"})

	deliveryRateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "channel_delivery_rate_limited_total",
		Help: "Attempts the chat service answered with a rate limit",
	}, []string{"channel"})

	circuitBreakerOpenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "channel_delivery_circuit_open_total",
		Help: "Times a failed attempt opened the channel circuit breaker",
	}, []string{"channel"})

	// reason is circuit_open or disabled.
	deliveryDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "channel_delivery_dropped_total",
		Help: "Deliveries skipped for a channel",
	}, []string{"channel", "reason"})

	activeDeliveries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "channel_delivery_in_flight",
		Help: "Channel attempts in flight",
	})

	channelsEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "channel_delivery_channels_enabled",
		Help: "Enabled notification channels",
	})
)

// RecordDispatch is called right before a channel attempt.
func RecordDispatch(channel string) { deliveryDispatchedTotal.WithLabelValues(channel).Inc() }

// RecordSuccess records an attempt the channel accepted.
func RecordSuccess(channel string, d time.Duration) { recordResult(channel, "success", d) }

// RecordFailure records an attempt that errored or was rejected.
func RecordFailure(channel string, d time.Duration) { recordResult(channel, "failure", d) }

func recordResult(channel, status string, d time.Duration) {
	deliverySentTotal.WithLabelValues(channel, status).Inc()
	deliveryDuration.WithLabelValues(channel).Observe(d.Seconds())
}

// RecordDropped records a channel skipped without an attempt.
func RecordDropped(channel, reason string) {
	deliveryDroppedTotal.WithLabelValues(channel, reason).Inc()
}

func RecordCircuitBreakerOpen(channel string) { circuitBreakerOpenTotal.WithLabelValues(channel).Inc() }
func RecordRateLimitHit(channel string)       { deliveryRateLimitHits.WithLabelValues(channel).Inc() }
func IncrementActiveDeliveries()              { activeDeliveries.Inc() }
func DecrementActiveDeliveries()              { activeDeliveries.Dec() }
func SetChannelsEnabled(count float64)        { channelsEnabled.Set(count) }
