package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/observability/logging"
)

// Telegram message limits.
const (
	maxTelegramText    = 4096
	maxTelegramCaption = 1024
)

// TelegramConfig contains configuration for Telegram bot notifications.
type TelegramConfig struct {
	Enabled  bool
	BotToken string
	ChatID   int64
	Timeout  time.Duration

	// APIEndpoint overrides tgbotapi.APIEndpoint, e.g. for a local Bot API server.
	APIEndpoint string
}

// TelegramNotifier sends HTML-formatted messages through the Telegram Bot API.
// The bot client is created on first use so a Telegram outage at startup is a
// delivery failure rather than a fatal error.
type TelegramNotifier struct {
	config      TelegramConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier creates a TelegramNotifier limited to 1 msg/s with a burst
// of 3 (Telegram allows about one message per second per chat).
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	if config.APIEndpoint == "" {
		config.APIEndpoint = tgbotapi.APIEndpoint
	}
	return &TelegramNotifier{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(1.0, 3),
	}
}

// contextClient attaches ctx to every Bot API request; tgbotapi builds its
// requests without one.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// client returns a bot whose calls are canceled with ctx.
func (t *TelegramNotifier) client(ctx context.Context) (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	doer := contextClient{ctx: ctx, client: t.httpClient}
	if t.bot == nil {
		bot, err := tgbotapi.NewBotAPIWithClient(t.config.BotToken, t.config.APIEndpoint, doer)
		if err != nil {
			return nil, classifyTelegramError(err)
		}
		slog.Info("Telegram bot authorized", slog.String("username", bot.Self.UserName))
		t.bot = bot
	}
	bound := *t.bot
	bound.Client = doer
	return &bound, nil
}

// Notify implements Notifier. Messages with an image are sent as a photo with
// caption and fall back to a text message when the photo is rejected.
func (t *TelegramNotifier) Notify(ctx context.Context, msg entity.Message) error {
	requestID := RequestIDFromContext(ctx)

	if _, err := t.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	bot, err := t.client(ctx)
	if err != nil {
		return err
	}

	text := renderTelegramHTML(msg)
	markup := telegramKeyboard(msg.Buttons)

	if msg.ImageURL != "" && utf8.RuneCountInString(text) <= maxTelegramCaption {
		photo := tgbotapi.NewPhoto(t.config.ChatID, tgbotapi.FileURL(msg.ImageURL))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		if markup != nil {
			photo.ReplyMarkup = *markup
		}
		_, err := bot.Send(photo)
		if err == nil {
			slog.Debug("Telegram photo sent", slog.String("request_id", requestID))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		classified := classifyTelegramError(err)
		if _, limited := RetryAfter(classified); limited {
			return classified
		}
		slog.Warn("Telegram photo rejected, falling back to text",
			slog.String("request_id", requestID),
			logging.ErrorAttr(err))
	}

	m := tgbotapi.NewMessage(t.config.ChatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	if utf8.RuneCountInString(text) > maxTelegramText {
		m.Text = truncate(renderPlain(msg), maxTelegramText, ellipsis)
		m.ParseMode = ""
	}
	if markup != nil {
		m.ReplyMarkup = *markup
	}

	if _, err := bot.Send(m); err != nil {
		classified := classifyTelegramError(err)
		slog.Warn("Telegram notification failed",
			slog.String("request_id", requestID),
			slog.String("kind", string(msg.Kind)),
			logging.ErrorAttr(classified))
		return classified
	}

	slog.Debug("Telegram message sent", slog.String("request_id", requestID))
	return nil
}

// renderTelegramHTML renders msg with Telegram's HTML subset.
// Buttons Telegram cannot link (non-http schemes) are listed in the text.
func renderTelegramHTML(msg entity.Message) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(msg.Title))
	b.WriteString("</b>")
	if msg.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(msg.Body))
	}
	if len(msg.Fields) > 0 {
		b.WriteString("\n")
	}
	for _, f := range msg.Fields {
		fmt.Fprintf(&b, "\n<b>%s:</b> %s", html.EscapeString(f.Name), html.EscapeString(f.Value))
	}
	for _, btn := range msg.Buttons {
		if !isWebURL(btn.URL) {
			fmt.Fprintf(&b, "\n%s: <code>%s</code>", html.EscapeString(btn.Label), html.EscapeString(btn.URL))
		}
	}
	return b.String()
}

func telegramKeyboard(buttons []entity.Button) *tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, btn := range buttons {
		if isWebURL(btn.URL) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL))
		}
	}
	if len(row) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(row)
	return &markup
}

func isWebURL(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}

// classifyTelegramError maps Bot API errors onto the shared error types.
func classifyTelegramError(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("telegram request: %w", err)
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		retryAfter := time.Duration(apiErr.RetryAfter) * time.Second
		if retryAfter <= 0 {
			retryAfter = defaultRetryAfter
		}
		return &RateLimitError{Message: "Telegram rate limit exceeded", RetryAfter: retryAfter}
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return &ClientError{StatusCode: apiErr.Code, Message: "Telegram API client error: " + apiErr.Message}
	case apiErr.Code >= 500:
		return &ServerError{StatusCode: apiErr.Code, Message: "Telegram API server error: " + apiErr.Message}
	default:
		return fmt.Errorf("telegram API error %d: %s", apiErr.Code, apiErr.Message)
	}
}
