// Package policy decides which change events become immediate alerts, in which
// order, and records what the user was told in the snapshot store.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/usecase/notify"
)

const (
	defaultAttemptTimeout = 15 * time.Second
	defaultRetryDelay     = time.Second
	defaultMaxRetryWait   = 10 * time.Second
)

// Sink delivers one rendered message. notify.Service implements it.
type Sink interface {
	Deliver(ctx context.Context, msg entity.Message) notify.DeliveryResult
}

// NotificationStore is the part of the snapshot store the policy reads and writes.
type NotificationStore interface {
	Get(id string) (entity.SnapshotEntry, bool)
	MarkNotified(id string, state entity.NotifiedState) bool
}

// Config controls alert ordering, the per-cycle cap and delivery timing.
type Config struct {
	MenFirst bool

	// MaxAlertsPerCycle caps immediate alerts; zero means no cap.
	MaxAlertsPerCycle int

	// AttemptTimeout bounds each delivery attempt.
	AttemptTimeout time.Duration

	// RetryDelay is the pause before the retry when the sink gave no Retry-After.
	RetryDelay time.Duration

	// MaxRetryWait is the longest Retry-After honored; longer waits skip the retry.
	MaxRetryWait time.Duration
}

// Outcome reports what Apply did with one cycle's events.
type Outcome struct {
	Sent       []entity.ChangeEvent
	Failed     []*entity.DeliveryError
	Deferred   []entity.ChangeEvent
	Suppressed int

	// OutOfStock counts WENT_OUT_OF_STOCK events recorded without an alert.
	OutOfStock int
	Attempts   int
}

// Policy turns change events into alerts.
type Policy struct {
	cfg       Config
	store     NotificationStore
	sink      Sink
	formatter *Formatter
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a Policy.
func New(cfg Config, store NotificationStore, sink Sink, formatter *Formatter, logger *slog.Logger) *Policy {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = defaultMaxRetryWait
	}
	if formatter == nil {
		formatter = NewFormatter(FormatConfig{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		cfg:       cfg,
		store:     store,
		sink:      sink,
		formatter: formatter,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Formatter returns the formatter used for alert messages.
func (p *Policy) Formatter() *Formatter {
	return p.formatter
}

// Apply handles one cycle's events. Alerts are sent sequentially in priority
// order; every alertable event is marked notified whether or not delivery worked.
func (p *Policy) Apply(ctx context.Context, events []entity.ChangeEvent) Outcome {
	var out Outcome
	var candidates []entity.ChangeEvent

	for _, ev := range events {
		switch {
		case ev.Kind == entity.ChangeWentOutOfStock:
			p.store.MarkNotified(ev.ProductID, entity.NotifiedOutOfStock)
			out.OutOfStock++
		case ev.Kind.Alertable():
			if entry, ok := p.store.Get(ev.ProductID); ok && entry.Notified == ev.Kind.TargetState() {
				out.Suppressed++
				p.logger.Debug("alert suppressed",
					slog.String("product_id", ev.ProductID),
					slog.String("kind", ev.Kind.String()),
					slog.String("notified", entry.Notified.String()))
				continue
			}
			candidates = append(candidates, ev)
		}
	}

	p.Order(candidates)

	for i, ev := range candidates {
		if p.cfg.MaxAlertsPerCycle > 0 && i >= p.cfg.MaxAlertsPerCycle {
			out.Deferred = append(out.Deferred, ev)
			p.store.MarkNotified(ev.ProductID, ev.Kind.TargetState())
			continue
		}
		if ctx.Err() != nil {
			// Shutdown: leave the remaining alerts for the next run.
			break
		}

		msg := p.formatter.Alert(ev, time.Now())
		attempts, err := p.deliver(ctx, msg)
		out.Attempts += attempts
		p.store.MarkNotified(ev.ProductID, ev.Kind.TargetState())

		if err != nil {
			derr := &entity.DeliveryError{ProductID: ev.ProductID, Detail: err.Error()}
			out.Failed = append(out.Failed, derr)
			p.logger.Warn("alert delivery failed",
				slog.String("product_id", ev.ProductID),
				slog.String("kind", ev.Kind.String()),
				slog.Int("attempts", attempts),
				slog.Any("error", derr))
			continue
		}
		out.Sent = append(out.Sent, ev)
		p.logger.Info("alert sent",
			slog.String("product_id", ev.ProductID),
			slog.String("kind", ev.Kind.String()),
			slog.Bool("partial_variant", ev.PartialVariant))
	}

	if len(out.Deferred) > 0 {
		p.logger.Warn("alert cap reached, remaining alerts go to the summary",
			slog.Int("deferred", len(out.Deferred)),
			slog.Int("max_alerts_per_cycle", p.cfg.MaxAlertsPerCycle))
	}
	return out
}

// Send delivers a non-alert message (summary, health, lifecycle) with the
// same retry-once rule as alerts.
func (p *Policy) Send(ctx context.Context, msg entity.Message) error {
	if _, err := p.deliver(ctx, msg); err != nil {
		return &entity.DeliveryError{Detail: err.Error()}
	}
	return nil
}

// Order sorts alert candidates: men first when configured, then price
// ascending with unknown prices last, then id.
func (p *Policy) Order(events []entity.ChangeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Current, events[j].Current
		if p.cfg.MenFirst && a.Mens() != b.Mens() {
			return a.Mens()
		}
		if a.HasPrice != b.HasPrice {
			return a.HasPrice
		}
		if a.HasPrice {
			if c := a.Price.Amount.Cmp(b.Price.Amount); c != 0 {
				return c < 0
			}
		}
		return a.ID < b.ID
	})
}

// deliver makes at most two attempts. It returns the number of attempts made
// and the failure detail of the last one.
func (p *Policy) deliver(ctx context.Context, msg entity.Message) (int, error) {
	res := p.attempt(ctx, msg)
	if res.OK {
		return 1, nil
	}
	if !res.Retryable || ctx.Err() != nil {
		return 1, errors.New(res.ErrorDetail)
	}

	wait := p.cfg.RetryDelay
	if res.RetryAfter > 0 {
		if res.RetryAfter > p.cfg.MaxRetryWait {
			return 1, fmt.Errorf("%s (retry after %s)", res.ErrorDetail, res.RetryAfter)
		}
		wait = res.RetryAfter
	}
	if err := p.sleep(ctx, wait); err != nil {
		return 1, errors.New(res.ErrorDetail)
	}

	res = p.attempt(ctx, msg)
	if res.OK {
		return 2, nil
	}
	return 2, errors.New(res.ErrorDetail)
}

func (p *Policy) attempt(ctx context.Context, msg entity.Message) notify.DeliveryResult {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
	defer cancel()
	return p.sink.Deliver(ctx, msg)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
