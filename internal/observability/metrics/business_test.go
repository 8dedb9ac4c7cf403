package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordProductsChecked(t *testing.T) {
	before := testutil.ToFloat64(ProductsCheckedTotal)

	RecordProductsChecked(12)
	RecordProductsChecked(0)

	assert.Equal(t, before+12, testutil.ToFloat64(ProductsCheckedTotal))
}

func TestRecordChange(t *testing.T) {
	for _, kind := range []string{"NEW", "RESTOCKED", "WENT_OUT_OF_STOCK", "REMOVED"} {
		t.Run(kind, func(t *testing.T) {
			before := testutil.ToFloat64(ChangesTotal.WithLabelValues(kind))
			RecordChange(kind)
			assert.Equal(t, before+1, testutil.ToFloat64(ChangesTotal.WithLabelValues(kind)))
		})
	}
}

func TestRecordAlerts(t *testing.T) {
	tests := []struct {
		name   string
		status string
		count  int
	}{
		{"TC-1: sent", "sent", 3},
		{"TC-2: failed", "failed", 1},
		{"TC-3: zero is ignored", "deferred", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(AlertsTotal.WithLabelValues(tt.status))
			RecordAlerts(tt.status, tt.count)
			assert.Equal(t, before+float64(tt.count), testutil.ToFloat64(AlertsTotal.WithLabelValues(tt.status)))
		})
	}
}

func TestRecordFetchFailure(t *testing.T) {
	before := testutil.ToFloat64(FetchFailuresTotal.WithLabelValues("unknown"))
	RecordFetchFailure("")
	assert.Equal(t, before+1, testutil.ToFloat64(FetchFailuresTotal.WithLabelValues("unknown")))

	before = testutil.ToFloat64(FetchFailuresTotal.WithLabelValues("blocked"))
	RecordFetchFailure("blocked")
	assert.Equal(t, before+1, testutil.ToFloat64(FetchFailuresTotal.WithLabelValues("blocked")))
}

func TestGaugesAndHistograms(t *testing.T) {
	UpdateSnapshotSize(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(SnapshotSize))

	RecordCircuitState("catalog-api", 2, "open")
	assert.Equal(t, float64(2), testutil.ToFloat64(CircuitState.WithLabelValues("catalog-api")))
	assert.Equal(t, float64(1), testutil.ToFloat64(CircuitTransitionsTotal.WithLabelValues("catalog-api", "open")))

	before := testutil.ToFloat64(MalformedRecordsTotal)
	RecordMalformedRecords(2)
	assert.Equal(t, before+2, testutil.ToFloat64(MalformedRecordsTotal))

	assert.NotPanics(t, func() {
		RecordFetch("api", true, 300*time.Millisecond)
		RecordFetch("html", false, 2*time.Second)
		RecordDBQuery("save_snapshot", 5*time.Millisecond)
		RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	})
	assert.Equal(t, 2, testutil.CollectAndCount(FetchDuration))
}
