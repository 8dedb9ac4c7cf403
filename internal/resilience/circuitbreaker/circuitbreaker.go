// Package circuitbreaker wraps sony/gobreaker for the watcher's outbound
// dependencies: catalog strategies, alert channels and the snapshot database.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"shein-verse-bot/internal/observability/metrics"
)

// Config describes when a breaker trips and how it recovers.
type Config struct {
	Name string

	// MinRequests is the number of calls in the current window before the
	// failure ratio is considered at all.
	MinRequests uint32

	// FailureThreshold trips the breaker once failures/requests reaches it.
	// 1.0 means every call in the window failed.
	FailureThreshold float64

	// Interval resets the closed-state counts. Timeout is how long the
	// breaker stays open before letting MaxRequests probe calls through.
	Interval    time.Duration
	Timeout     time.Duration
	MaxRequests uint32
}

// CatalogConfig is used per catalog strategy. Five failed attempts in a row
// open it; after two minutes, a handful of poll cycles, one probe is allowed.
func CatalogConfig(name string) Config {
	return Config{
		Name:             name,
		MinRequests:      5,
		FailureThreshold: 1.0,
		Interval:         10 * time.Minute,
		Timeout:          2 * time.Minute,
		MaxRequests:      1,
	}
}

// NotifyChannelConfig is used per alert channel and named "notify-<channel>".
func NotifyChannelConfig(channel string) Config {
	return Config{
		Name:             "notify-" + channel,
		MinRequests:      5,
		FailureThreshold: 1.0,
		Interval:         5 * time.Minute,
		Timeout:          5 * time.Minute,
		MaxRequests:      1,
	}
}

// DBConfig is used for the snapshot database.
func DBConfig() Config {
	return Config{
		Name:             "snapshot-db",
		MinRequests:      5,
		FailureThreshold: 1.0,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		MaxRequests:      3,
	}
}

func (c Config) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.MinRequests || counts.Requests == 0 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureThreshold
}

// CircuitBreaker is a named gobreaker breaker whose transitions are logged
// and exported as circuit_breaker_state.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// New builds a closed breaker from cfg.
func New(cfg Config) *CircuitBreaker {
	metrics.CircuitState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return &CircuitBreaker{
		name: cfg.Name,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: cfg.readyToTrip,
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed",
					slog.String("circuit", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
				metrics.RecordCircuitState(name, int(to), to.String())
			},
		}),
	}
}

// Execute runs fn unless the breaker rejects the call, in which case the
// error satisfies IsOpenError and fn is not called.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// Run is Execute for calls without a result.
func (cb *CircuitBreaker) Run(fn func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) { return nil, fn() })
	return err
}

func (cb *CircuitBreaker) Name() string           { return cb.name }
func (cb *CircuitBreaker) State() gobreaker.State { return cb.breaker.State() }
func (cb *CircuitBreaker) IsOpen() bool           { return cb.State() == gobreaker.StateOpen }

// IsOpenError reports whether err is a breaker rejection: open, or half-open
// with all probe slots taken.
func IsOpenError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
