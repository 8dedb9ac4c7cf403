package notifier

import (
	"context"
	"strings"
	"time"

	"shein-verse-bot/internal/domain/entity"
)

// SlackConfig configures the Slack incoming webhook. The URL is a secret.
type SlackConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

// SlackNotifier renders a message with Block Kit.
type SlackNotifier struct {
	hook *webhook
}

// NewSlackNotifier limits sends to one per second, Slack's webhook quota.
func NewSlackNotifier(cfg SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		hook: newWebhook("Slack", cfg.WebhookURL, cfg.Timeout, NewRateLimiter(1, 1),
			func(msg entity.Message) any { return slackPayload(msg) }),
	}
}

// Notify implements Notifier.
func (s *SlackNotifier) Notify(ctx context.Context, msg entity.Message) error {
	return s.hook.notify(ctx, msg)
}

// SlackWebhookPayload carries Block Kit blocks plus the plain text shown in
// push notifications.
type SlackWebhookPayload struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks"`
}

// SlackBlock covers the section, image, actions and context block types.
type SlackBlock struct {
	Type     string      `json:"type"`
	Text     *SlackText  `json:"text,omitempty"`
	Fields   []SlackText `json:"fields,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	AltText  string      `json:"alt_text,omitempty"`
	Elements []any       `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type SlackButton struct {
	Type string    `json:"type"`
	Text SlackText `json:"text"`
	URL  string    `json:"url"`
}

const (
	slackSectionLimit  = 3000
	slackFallbackLimit = 150
	slackMaxFields     = 10
)

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func mrkdwn(text string) SlackText { return SlackText{Type: "mrkdwn", Text: text} }

// slackPayload drops buttons Slack cannot open (app deep links).
func slackPayload(msg entity.Message) SlackWebhookPayload {
	fallback := truncate(msg.Title, slackFallbackLimit, ellipsis)

	text := "*" + slackEscaper.Replace(msg.Title) + "*"
	if msg.Body != "" {
		text += "\n" + slackEscaper.Replace(msg.Body)
	}
	section := SlackBlock{Type: "section"}
	sectionText := mrkdwn(truncate(text, slackSectionLimit, ellipsis))
	section.Text = &sectionText
	for _, f := range msg.Fields[:min(len(msg.Fields), slackMaxFields)] {
		section.Fields = append(section.Fields,
			mrkdwn("*"+slackEscaper.Replace(f.Name)+"*\n"+slackEscaper.Replace(f.Value)))
	}
	blocks := []SlackBlock{section}

	if msg.ImageURL != "" {
		blocks = append(blocks, SlackBlock{Type: "image", ImageURL: msg.ImageURL, AltText: fallback})
	}

	var buttons []any
	for _, b := range msg.Buttons {
		if isWebURL(b.URL) {
			buttons = append(buttons, SlackButton{Type: "button", Text: SlackText{Type: "plain_text", Text: b.Label}, URL: b.URL})
		}
	}
	if len(buttons) > 0 {
		blocks = append(blocks, SlackBlock{Type: "actions", Elements: buttons})
	}

	if !msg.Timestamp.IsZero() {
		blocks = append(blocks, SlackBlock{Type: "context", Elements: []any{mrkdwn(msg.Timestamp.Format(time.RFC3339))}})
	}
	return SlackWebhookPayload{Text: fallback, Blocks: blocks}
}
