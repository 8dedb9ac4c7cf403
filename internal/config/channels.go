package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/infra/notifier"
	env "shein-verse-bot/pkg/config"
)

const channelTimeout = 15 * time.Second

// telegram is enabled by TELEGRAM_ENABLED, or by a bot token when the flag is unset.
//
// Environment variables:
//   - TELEGRAM_BOT_TOKEN: bot token from @BotFather
//   - TELEGRAM_CHAT_ID: numeric chat id (negative for groups and channels)
//   - TELEGRAM_API_ENDPOINT: optional Bot API endpoint override
func (p *parser) telegram() notifier.TelegramConfig {
	token := env.GetEnvString("TELEGRAM_BOT_TOKEN", "")
	enabled := p.boolean("TELEGRAM_ENABLED", token != "")
	if !enabled {
		return notifier.TelegramConfig{}
	}

	cfg := notifier.TelegramConfig{
		Enabled:     true,
		BotToken:    token,
		Timeout:     channelTimeout,
		APIEndpoint: env.GetEnvString("TELEGRAM_API_ENDPOINT", ""),
	}
	if token == "" {
		p.fail(&entity.ConfigurationError{Field: "TELEGRAM_BOT_TOKEN", Message: "is required when Telegram is enabled"})
	} else if !strings.Contains(token, ":") {
		p.fail(&entity.ConfigurationError{Field: "TELEGRAM_BOT_TOKEN", Message: "does not look like a bot token"})
	}

	chatID, err := env.GetEnvInt64("TELEGRAM_CHAT_ID", 0)
	switch {
	case err != nil:
		p.fail(err)
	case chatID == 0:
		p.fail(&entity.ConfigurationError{Field: "TELEGRAM_CHAT_ID", Message: "is required when Telegram is enabled"})
	}
	cfg.ChatID = chatID
	return cfg
}

// discord is enabled by DISCORD_ENABLED, or by DISCORD_WEBHOOK_URL when the flag is unset.
func (p *parser) discord() notifier.DiscordConfig {
	webhookURL := env.GetEnvString("DISCORD_WEBHOOK_URL", "")
	if !p.boolean("DISCORD_ENABLED", webhookURL != "") {
		return notifier.DiscordConfig{}
	}
	if err := validateWebhook("DISCORD_WEBHOOK_URL", webhookURL, "discord.com", "/api/webhooks/"); err != nil {
		p.fail(err)
	}
	return notifier.DiscordConfig{Enabled: true, WebhookURL: webhookURL, Timeout: channelTimeout}
}

// slack is enabled by SLACK_ENABLED, or by SLACK_WEBHOOK_URL when the flag is unset.
func (p *parser) slack() notifier.SlackConfig {
	webhookURL := env.GetEnvString("SLACK_WEBHOOK_URL", "")
	if !p.boolean("SLACK_ENABLED", webhookURL != "") {
		return notifier.SlackConfig{}
	}
	if err := validateWebhook("SLACK_WEBHOOK_URL", webhookURL, "hooks.slack.com", "/services/"); err != nil {
		p.fail(err)
	}
	return notifier.SlackConfig{Enabled: true, WebhookURL: webhookURL, Timeout: channelTimeout}
}

// validateWebhook requires an https URL on host whose path starts with pathPrefix.
func validateWebhook(field, raw, host, pathPrefix string) error {
	if raw == "" {
		return &entity.ConfigurationError{Field: field, Message: "is required when the channel is enabled"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &entity.ConfigurationError{Field: field, Message: fmt.Sprintf("parse URL: %v", err)}
	}
	if u.Scheme != "https" {
		return &entity.ConfigurationError{Field: field, Message: "must use https"}
	}
	if u.Host != host {
		return &entity.ConfigurationError{Field: field, Message: fmt.Sprintf("host must be %s, got %s", host, u.Host)}
	}
	if !strings.HasPrefix(u.Path, pathPrefix) {
		return &entity.ConfigurationError{Field: field, Message: fmt.Sprintf("path must start with %s", pathPrefix)}
	}
	return nil
}
