package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for the watch pipeline. Typed errors below unwrap to these so
// callers can branch with errors.Is without caring about the concrete type.
var (
	// ErrMalformedRecord indicates that a single catalog record could not be normalized.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrFetchFailed indicates that a whole catalog fetch failed.
	ErrFetchFailed = errors.New("catalog fetch failed")

	// ErrDeliveryFailed indicates that a notification could not be delivered.
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrConfiguration indicates missing or invalid startup configuration.
	ErrConfiguration = errors.New("invalid configuration")
)

// MalformedRecordError describes why one raw record was skipped.
type MalformedRecordError struct {
	Field  string
	Reason string
}

// Error returns a formatted error message for the malformed record.
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: field '%s': %s", e.Field, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

// Fetch failure reasons reported by catalog sources.
const (
	FetchReasonTimeout     = "timeout"
	FetchReasonStatus      = "bad_status"
	FetchReasonBlocked     = "blocked"
	FetchReasonRateLimited = "rate_limited"
	FetchReasonEmpty       = "empty"
	FetchReasonDecode      = "decode"
	FetchReasonTransport   = "transport"
	FetchReasonCircuitOpen = "circuit_open"
)

// FetchError is a batch-level failure: nothing from the attempt may touch the snapshot.
type FetchError struct {
	Reason string
	Err    error
}

// Error returns a formatted error message for the fetch failure.
func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("catalog fetch failed: %s", e.Reason)
	}
	return fmt.Sprintf("catalog fetch failed: %s: %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}

// DeliveryError records a notification that failed after its retry.
type DeliveryError struct {
	ProductID string
	Detail    string
}

// Error returns a formatted error message for the delivery failure.
func (e *DeliveryError) Error() string {
	if e.ProductID == "" {
		return fmt.Sprintf("notification delivery failed: %s", e.Detail)
	}
	return fmt.Sprintf("notification delivery failed for product %s: %s", e.ProductID, e.Detail)
}

func (e *DeliveryError) Unwrap() error { return ErrDeliveryFailed }

// ConfigurationError represents a fatal startup configuration problem.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the configuration error.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error on field '%s': %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }
