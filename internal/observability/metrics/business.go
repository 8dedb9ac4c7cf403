package metrics

import (
	"time"
)

// RecordProductsChecked adds the number of products compared in one cycle.
func RecordProductsChecked(count int) {
	if count > 0 {
		ProductsCheckedTotal.Add(float64(count))
	}
}

// RecordChange records one classified change. UNCHANGED is not recorded.
func RecordChange(kind string) {
	ChangesTotal.WithLabelValues(kind).Inc()
}

// RecordAlerts adds count alert decisions with the given status
// ("sent", "failed", "deferred" or "suppressed").
func RecordAlerts(status string, count int) {
	if count > 0 {
		AlertsTotal.WithLabelValues(status).Add(float64(count))
	}
}

// RecordMalformedRecords adds records skipped by the normalizer.
func RecordMalformedRecords(count int) {
	if count > 0 {
		MalformedRecordsTotal.Add(float64(count))
	}
}

// RecordFetchFailure records a failed catalog fetch.
// Reason is the FetchError reason, e.g. "timeout" or "blocked".
func RecordFetchFailure(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	FetchFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordFetch records the duration of one catalog strategy attempt.
func RecordFetch(strategy string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	FetchDuration.WithLabelValues(strategy, status).Observe(duration.Seconds())
}

// UpdateSnapshotSize sets the number of tracked products.
func UpdateSnapshotSize(count int) {
	SnapshotSize.Set(float64(count))
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "load_snapshot", "save_snapshot").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCircuitState records a circuit breaker transition. state is the
// numeric gobreaker state and to its name.
func RecordCircuitState(circuit string, state int, to string) {
	CircuitState.WithLabelValues(circuit).Set(float64(state))
	CircuitTransitionsTotal.WithLabelValues(circuit, to).Inc()
}
