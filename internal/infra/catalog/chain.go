package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/observability/logging"
	"shein-verse-bot/internal/observability/metrics"
)

// Strategy is one way of reading the collection.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context) ([]entity.RawRecord, error)
}

// Chain tries its strategies in order and returns the first non-empty result.
type Chain struct {
	strategies []Strategy
	sizes      *SizeLookup
}

// NewChain creates a Chain over the given strategies.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// New builds the chain named by cfg.Strategies, sharing one HTTP client.
func New(client *http.Client, cfg Config) *Chain {
	if client == nil {
		client = clientFor(cfg)
	}
	names := cfg.Strategies
	if len(names) == 0 {
		names = []string{StrategyAPI, StrategyHTML, StrategyMobile}
		if cfg.FeedURL != "" {
			names = append(names, StrategyFeed)
		}
	}

	var strategies []Strategy
	for _, name := range names {
		switch name {
		case StrategyAPI:
			strategies = append(strategies, NewAPISource(client, cfg))
		case StrategyHTML:
			strategies = append(strategies, NewHTMLSource(client, cfg))
		case StrategyMobile:
			strategies = append(strategies, NewMobileSource(client, cfg))
		case StrategyFeed:
			if cfg.FeedURL != "" {
				strategies = append(strategies, NewFeedSource(client, cfg))
			}
		}
	}
	chain := NewChain(strategies...)
	if cfg.DetailSizes {
		chain.sizes = NewSizeLookup(client, cfg)
	}
	return chain
}

// Strategies returns the strategy names in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Fetch implements poll.Source. When every strategy fails the error is a
// *entity.FetchError whose reason is the first strategy's reason; the message
// lists each strategy's failure. A canceled context is returned as is.
func (c *Chain) Fetch(ctx context.Context) ([]entity.RawRecord, error) {
	logger := logging.FromContext(ctx)
	if len(c.strategies) == 0 {
		return nil, &entity.FetchError{Reason: entity.FetchReasonTransport, Err: errors.New("no catalog strategies configured")}
	}

	var (
		reason string
		failed []string
		errs   []error
	)
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		records, err := s.Fetch(ctx)
		if err == nil && len(records) == 0 {
			err = &entity.FetchError{Reason: entity.FetchReasonEmpty}
		}
		metrics.RecordFetch(s.Name(), err == nil, time.Since(start))

		if err == nil {
			logger.Debug("catalog strategy succeeded",
				slog.String("strategy", s.Name()),
				slog.Int("records", len(records)))
			if c.sizes != nil {
				c.sizes.Enrich(ctx, records)
			}
			return records, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}

		r := reasonOf(err)
		if reason == "" {
			reason = r
		}
		failed = append(failed, fmt.Sprintf("%s: %s", s.Name(), r))
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		logger.Warn("catalog strategy failed",
			slog.String("strategy", s.Name()),
			slog.String("reason", r),
			slog.Any("error", err))
	}

	return nil, &entity.FetchError{
		Reason: reason,
		Err:    fmt.Errorf("all strategies failed (%s): %w", strings.Join(failed, ", "), errors.Join(errs...)),
	}
}

func reasonOf(err error) string {
	var ferr *entity.FetchError
	if errors.As(err, &ferr) {
		return ferr.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return entity.FetchReasonTimeout
	}
	return entity.FetchReasonTransport
}
