// Package notify fans rendered messages out to the configured delivery channels
// (Telegram, Discord, Slack, console) and reports a single delivery result per message.
package notify

import (
	"context"
	"log/slog"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/infra/notifier"
)

// Channel represents a notification delivery channel.
//
// Retry Policy Contract:
//   - Send makes exactly one attempt; the caller owns retries
//   - Rate limits surface as *notifier.RateLimitError carrying the requested wait
//   - Client errors (4xx except 429) surface as *notifier.ClientError and are final
//
// Thread Safety:
//   - All methods must be safe for concurrent use by multiple goroutines
type Channel interface {
	// Name returns the channel identifier used in logs, metrics and the
	// /health/channels endpoint (lowercase, e.g. "telegram").
	Name() string

	// IsEnabled returns true if this channel is enabled via configuration.
	// Disabled channels are skipped during delivery.
	IsEnabled() bool

	// Send delivers msg to this channel.
	//
	// Returns:
	//   - error: Non-nil if the attempt failed
	//     - ErrChannelDisabled: If Send() called on disabled channel
	//     - ErrInvalidMessage: If msg has no title
	//     - Network/API errors: Wrapped with context
	Send(ctx context.Context, msg entity.Message) error
}

// notifierChannel adapts an infra notifier to the Channel interface.
type notifierChannel struct {
	name     string
	enabled  bool
	notifier notifier.Notifier
}

// NewChannel wraps n as a Channel named name.
func NewChannel(name string, enabled bool, n notifier.Notifier) Channel {
	return &notifierChannel{name: name, enabled: enabled, notifier: n}
}

// NewTelegramChannel creates the Telegram channel.
func NewTelegramChannel(cfg notifier.TelegramConfig) Channel {
	return NewChannel("telegram", cfg.Enabled, notifier.NewTelegramNotifier(cfg))
}

// NewDiscordChannel creates the Discord webhook channel.
func NewDiscordChannel(cfg notifier.DiscordConfig) Channel {
	return NewChannel("discord", cfg.Enabled, notifier.NewDiscordNotifier(cfg))
}

// NewSlackChannel creates the Slack webhook channel.
func NewSlackChannel(cfg notifier.SlackConfig) Channel {
	return NewChannel("slack", cfg.Enabled, notifier.NewSlackNotifier(cfg))
}

// NewConsoleChannel creates a channel that only logs messages.
func NewConsoleChannel(logger *slog.Logger) Channel {
	return NewChannel("console", true, notifier.NewConsoleNotifier(logger))
}

func (c *notifierChannel) Name() string {
	return c.name
}

func (c *notifierChannel) IsEnabled() bool {
	return c.enabled
}

func (c *notifierChannel) Send(ctx context.Context, msg entity.Message) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if msg.Title == "" {
		return ErrInvalidMessage
	}
	return c.notifier.Notify(ctx, msg)
}
