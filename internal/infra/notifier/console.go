package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shein-verse-bot/internal/domain/entity"
)

// ConsoleNotifier writes messages to a logger instead of a chat service.
// It is meant for dry runs and local development.
type ConsoleNotifier struct {
	logger *slog.Logger
}

// NewConsoleNotifier returns a notifier logging at info level. A nil logger
// means slog.Default().
func NewConsoleNotifier(logger *slog.Logger) *ConsoleNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleNotifier{logger: logger}
}

// Notify never fails.
func (c *ConsoleNotifier) Notify(ctx context.Context, msg entity.Message) error {
	c.logger.InfoContext(ctx, "console alert",
		slog.String("request_id", RequestIDFromContext(ctx)),
		slog.String("kind", string(msg.Kind)),
		slog.String("text", renderPlain(msg)))
	return nil
}

// renderPlain renders msg without markup, listing every button.
func renderPlain(msg entity.Message) string {
	var b strings.Builder
	b.WriteString(msg.Title)
	if msg.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(msg.Body)
	}
	for _, f := range msg.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Name, f.Value)
	}
	for _, btn := range msg.Buttons {
		fmt.Fprintf(&b, "\n%s: %s", btn.Label, btn.URL)
	}
	return b.String()
}
