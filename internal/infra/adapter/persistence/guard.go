// Package persistence holds what the SQL snapshot repositories share.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shein-verse-bot/internal/observability/metrics"
	"shein-verse-bot/internal/resilience/circuitbreaker"
	"shein-verse-bot/internal/resilience/retry"
)

// Guard runs repository operations through the database circuit breaker and
// retry policy and records their latency.
type Guard struct {
	cb    *circuitbreaker.CircuitBreaker
	retry retry.Config
}

// NewGuard creates a Guard with the database breaker and retry defaults.
func NewGuard() *Guard {
	return &Guard{
		cb:    circuitbreaker.New(circuitbreaker.DBConfig()),
		retry: retry.DBConfig(),
	}
}

// WithRetry replaces the retry policy. Used by tests.
func (g *Guard) WithRetry(cfg retry.Config) *Guard {
	g.retry = cfg
	return g
}

// Do runs fn, labelling the query metric with op.
func (g *Guard) Do(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery(op, time.Since(start)) }()

	return retry.WithBackoff(ctx, g.retry, func() error {
		err := g.cb.Run(fn)
		if circuitbreaker.IsOpenError(err) {
			return fmt.Errorf("%s: database circuit open: %w", op, err)
		}
		return err
	})
}

// EncodeVariants serialises variant labels for storage.
func EncodeVariants(variants []string) (string, error) {
	if variants == nil {
		variants = []string{}
	}
	b, err := json.Marshal(variants)
	if err != nil {
		return "", fmt.Errorf("encode variants: %w", err)
	}
	return string(b), nil
}

// DecodeVariants is the inverse of EncodeVariants. An empty list decodes to nil.
func DecodeVariants(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var variants []string
	if err := json.Unmarshal(raw, &variants); err != nil {
		return nil, fmt.Errorf("decode variants: %w", err)
	}
	if len(variants) == 0 {
		return nil, nil
	}
	return variants, nil
}
