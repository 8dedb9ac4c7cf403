package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shein-verse-bot/internal/domain/entity"
)

// DiscordConfig configures the Discord incoming webhook. The URL carries the
// webhook secret and must never be logged.
type DiscordConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

// DiscordNotifier renders a message as one embed.
type DiscordNotifier struct {
	hook *webhook
}

// NewDiscordNotifier limits sends to one every two seconds with a burst of
// three, inside Discord's 30 per minute webhook quota.
func NewDiscordNotifier(cfg DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		hook: newWebhook("Discord", cfg.WebhookURL, cfg.Timeout, NewRateLimiter(0.5, 3),
			func(msg entity.Message) any { return discordPayload(msg) }),
	}
}

// Notify implements Notifier.
func (d *DiscordNotifier) Notify(ctx context.Context, msg entity.Message) error {
	return d.hook.notify(ctx, msg)
}

type DiscordWebhookPayload struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Image       *DiscordEmbedImage  `json:"image,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbedImage struct {
	URL string `json:"url"`
}

// Discord embed limits, counted in characters.
const (
	embedTitleLimit       = 256
	embedDescriptionLimit = 4096
	embedFieldLimit       = 1024
	ellipsis              = "..."
)

// Embed side colors.
const (
	colorAlert     = 0x57F287
	colorSummary   = 0x5865F2
	colorHealth    = 0xED4245
	colorLifecycle = 0xFEE75C
)

var embedColors = map[entity.MessageKind]int{
	entity.MessageAlert:     colorAlert,
	entity.MessageHealth:    colorHealth,
	entity.MessageLifecycle: colorLifecycle,
}

// discordPayload links the embed title to the first web button; every other
// button, deep links included, is listed under the description.
func discordPayload(msg entity.Message) DiscordWebhookPayload {
	color, ok := embedColors[msg.Kind]
	if !ok {
		color = colorSummary
	}
	embed := DiscordEmbed{
		Title: truncate(msg.Title, embedTitleLimit, ""),
		Color: color,
	}

	var desc strings.Builder
	desc.WriteString(msg.Body)
	for i, b := range msg.Buttons {
		if i == 0 && isWebURL(b.URL) {
			embed.URL = b.URL
			continue
		}
		fmt.Fprintf(&desc, "\n[%s](%s)", b.Label, b.URL)
	}
	embed.Description = truncate(strings.TrimSpace(desc.String()), embedDescriptionLimit, ellipsis)

	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, DiscordEmbedField{
			Name:   f.Name,
			Value:  truncate(f.Value, embedFieldLimit, ellipsis),
			Inline: true,
		})
	}
	if msg.ImageURL != "" {
		embed.Image = &DiscordEmbedImage{URL: msg.ImageURL}
	}
	if !msg.Timestamp.IsZero() {
		embed.Timestamp = msg.Timestamp.Format(time.RFC3339)
	}
	return DiscordWebhookPayload{Embeds: []DiscordEmbed{embed}}
}
