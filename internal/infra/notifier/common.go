package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID returns a context carrying id for notifier logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RateLimitError represents a 429 answer from a chat service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx answer other than 429.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx answer.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// RetryAfter returns the wait requested by a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr.RetryAfter, true
	}
	return 0, false
}

// IsRetryable reports whether another attempt may succeed.
// Client errors are final; rate limits, server errors and network errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// truncate shortens text to at most maxRunes runes, ending with suffix when cut.
func truncate(text string, maxRunes int, suffix string) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	keep := maxRunes - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(text)
	return string(runes[:keep]) + suffix
}

// classifyStatus maps an HTTP status from a chat service to a typed error.
func classifyStatus(service string, status int, body string, retryAfter time.Duration) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 429:
		return &RateLimitError{Message: service + " rate limit exceeded", RetryAfter: retryAfter}
	case status >= 400 && status < 500:
		return &ClientError{StatusCode: status, Message: fmt.Sprintf("%s API client error: %s", service, body)}
	case status >= 500:
		return &ServerError{StatusCode: status, Message: fmt.Sprintf("%s API server error: %s", service, body)}
	default:
		return fmt.Errorf("%s: unexpected status code %d: %s", service, status, body)
	}
}
