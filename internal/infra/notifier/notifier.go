// Package notifier delivers messages to chat services (Telegram, Discord, Slack).
// Each notifier makes a single delivery attempt per call; retry decisions belong
// to the caller, which can classify failures with IsRetryable and RetryAfter.
package notifier

import (
	"context"

	"shein-verse-bot/internal/domain/entity"
)

// Notifier sends one message to one destination.
type Notifier interface {
	// Notify delivers msg. Implementations apply their own rate limiting and
	// return *RateLimitError, *ClientError or *ServerError when the service
	// answered with an error status.
	Notify(ctx context.Context, msg entity.Message) error
}
