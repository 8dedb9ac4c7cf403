package slo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for the watcher.
const (
	// FreshnessSLO is the longest acceptable gap, in seconds, between two
	// successful catalog polls (8x the default 30s interval plus jitter).
	FreshnessSLO = 300.0

	// CycleSuccessSLO is the target ratio of successful poll cycles.
	CycleSuccessSLO = 0.95

	// DeliverySuccessSLO is the target ratio of alerts delivered on the first or second attempt.
	DeliverySuccessSLO = 0.99
)

// SLO tracking metrics, updated by the scheduler after every cycle.
var (
	// SLOFreshness tracks seconds since the last successful poll
	SLOFreshness = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_poll_freshness_seconds",
			Help: "Seconds since the last successful catalog poll, target: <= 300",
		},
	)

	// SLOCycleSuccess tracks successful cycles / all cycles since start
	SLOCycleSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_cycle_success_ratio",
			Help: "Ratio of successful poll cycles (0-1), target: 0.95",
		},
	)

	// SLODeliverySuccess tracks delivered alerts / attempted alerts since start
	SLODeliverySuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_delivery_success_ratio",
			Help: "Ratio of delivered alerts (0-1), target: 0.99",
		},
	)
)

// UpdateFreshness sets the freshness gauge from the last successful poll.
// A zero lastSuccess (no success yet) is measured from started.
func UpdateFreshness(lastSuccess, started, now time.Time) {
	ref := lastSuccess
	if ref.IsZero() {
		ref = started
	}
	SLOFreshness.Set(now.Sub(ref).Seconds())
}

// UpdateCycleSuccess sets the cycle success ratio. No cycles means 1.
func UpdateCycleSuccess(succeeded, total int) {
	SLOCycleSuccess.Set(ratio(succeeded, total))
}

// UpdateDeliverySuccess sets the delivery success ratio. No attempts means 1.
func UpdateDeliverySuccess(delivered, attempted int) {
	SLODeliverySuccess.Set(ratio(delivered, attempted))
}

func ratio(ok, total int) float64 {
	if total <= 0 {
		return 1
	}
	return float64(ok) / float64(total)
}
