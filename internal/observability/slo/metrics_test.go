package slo

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &io_prometheus_client.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestSLOConstants(t *testing.T) {
	if FreshnessSLO <= 0 || CycleSuccessSLO <= 0 || CycleSuccessSLO > 1 || DeliverySuccessSLO > 1 {
		t.Errorf("SLO targets out of range")
	}
}

func TestUpdateFreshness(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		lastSuccess time.Time
		now         time.Time
		want        float64
	}{
		{"TC-1: measured from last success", start.Add(time.Minute), start.Add(90 * time.Second), 30},
		{"TC-2: no success yet uses start", time.Time{}, start.Add(2 * time.Minute), 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			UpdateFreshness(tt.lastSuccess, start, tt.now)
			if got := gaugeValue(t, SLOFreshness); got != tt.want {
				t.Errorf("SLOFreshness = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateRatios(t *testing.T) {
	tests := []struct {
		name  string
		ok    int
		total int
		want  float64
	}{
		{"TC-1: nothing yet", 0, 0, 1},
		{"TC-2: all good", 10, 10, 1},
		{"TC-3: partial", 3, 4, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			UpdateCycleSuccess(tt.ok, tt.total)
			if got := gaugeValue(t, SLOCycleSuccess); got != tt.want {
				t.Errorf("SLOCycleSuccess = %v, want %v", got, tt.want)
			}
			UpdateDeliverySuccess(tt.ok, tt.total)
			if got := gaugeValue(t, SLODeliverySuccess); got != tt.want {
				t.Errorf("SLODeliverySuccess = %v, want %v", got, tt.want)
			}
		})
	}
}
