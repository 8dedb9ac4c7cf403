package logging

import (
	"log/slog"
	"regexp"
)

var (
	// Bot API URLs carry the token in the path: https://api.telegram.org/bot<id>:<secret>/sendMessage
	telegramTokenPattern = regexp.MustCompile(`bot(\d+):[A-Za-z0-9_-]+`)
	bareTokenPattern     = regexp.MustCompile(`\b(\d{6,}):[A-Za-z0-9_-]{30,}\b`)

	discordWebhookPattern = regexp.MustCompile(`(/api/webhooks/\d+)/[A-Za-z0-9_-]+`)
	slackWebhookPattern   = regexp.MustCompile(`(hooks\.slack\.com/services)/[A-Za-z0-9/_-]+`)

	dbPasswordPattern = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)
)

// Redact returns the message of err with credentials masked.
// Order matters: the prefixed token pattern runs before the bare one.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return RedactString(err.Error())
}

// RedactString masks credentials in s.
func RedactString(s string) string {
	s = telegramTokenPattern.ReplaceAllString(s, "bot$1:****")
	s = bareTokenPattern.ReplaceAllString(s, "$1:****")
	s = discordWebhookPattern.ReplaceAllString(s, "$1/****")
	s = slackWebhookPattern.ReplaceAllString(s, "$1/****")
	s = dbPasswordPattern.ReplaceAllString(s, "://$1:****@")
	return s
}

// ErrorAttr is slog.Any("error", err) with the message redacted.
func ErrorAttr(err error) slog.Attr {
	return slog.String("error", Redact(err))
}
