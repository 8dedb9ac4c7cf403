package policy

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/observability/logging"
)

var productPathRe = regexp.MustCompile(`p-(\d+)\.html`)

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatConfig controls how messages are worded.
type FormatConfig struct {
	// Collection names the watched collection in lifecycle messages.
	Collection string

	// Location is used for the clock times printed in messages. Nil means UTC.
	Location *time.Location
}

// Formatter renders alerts, summaries and lifecycle messages.
type Formatter struct {
	collection string
	loc        *time.Location
}

// NewFormatter creates a Formatter.
func NewFormatter(cfg FormatConfig) *Formatter {
	if cfg.Collection == "" {
		cfg.Collection = "SHEIN Verse"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Formatter{collection: cfg.Collection, loc: cfg.Location}
}

// Alert renders the immediate alert for a NEW or RESTOCKED event.
func (f *Formatter) Alert(ev entity.ChangeEvent, now time.Time) entity.Message {
	p := ev.Current

	title := "NEW PRODUCT"
	if ev.Kind == entity.ChangeRestocked {
		title = "RESTOCK"
		if ev.PartialVariant {
			title = "RESTOCK (new sizes)"
		}
	}

	fields := []entity.MessageField{{Name: "Price", Value: FormatPrice(p)}}
	if ev.Previous != nil && ev.Previous.HasPrice && p.HasPrice && !ev.Previous.Price.Amount.Equal(p.Price.Amount) {
		fields = append(fields, entity.MessageField{Name: "Was", Value: FormatPrice(*ev.Previous)})
	}
	sizes := "Check product page for sizes"
	if len(p.Variants) > 0 {
		sizes = strings.Join(p.Variants, ", ")
	}
	fields = append(fields, entity.MessageField{Name: "Sizes", Value: sizes})
	if ev.PartialVariant && ev.Previous != nil {
		if added := p.AddedVariants(*ev.Previous); len(added) > 0 {
			fields = append(fields, entity.MessageField{Name: "Back in stock", Value: strings.Join(added, ", ")})
		}
	}
	if p.Category != "" {
		fields = append(fields, entity.MessageField{Name: "Category", Value: categoryLabel(p.Category)})
	}
	fields = append(fields, entity.MessageField{Name: "Time", Value: now.In(f.loc).Format("15:04:05")})

	var buttons []entity.Button
	if p.BuyURL != "" {
		buttons = append(buttons, entity.Button{Label: "Buy now", URL: p.BuyURL})
		if link := DeepLink(p.BuyURL); link != "" {
			buttons = append(buttons, entity.Button{Label: "Open in app", URL: link})
		}
	}

	return entity.Message{
		Kind:      entity.MessageAlert,
		Title:     title,
		Body:      p.Name,
		Fields:    fields,
		ImageURL:  p.ImageURL,
		Buttons:   buttons,
		Timestamp: now,
	}
}

// SummaryStats carries the process-level numbers shown next to a CycleSummary.
type SummaryStats struct {
	Tracked     int
	Uptime      time.Duration
	TotalAlerts int

	// Stale is set when no alert was delivered for longer than StaleAfter.
	Stale      bool
	StaleAfter time.Duration
}

// Summary renders the periodic status summary.
func (f *Formatter) Summary(s entity.CycleSummary, stats SummaryStats, now time.Time) entity.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Since %s (%d cycles)", s.Since.In(f.loc).Format("02 Jan 15:04"), s.Cycles)
	if stats.Stale {
		fmt.Fprintf(&body, "\nNo alert delivered in the last %s.", formatDuration(stats.StaleAfter))
	}
	for _, n := range s.Notable {
		fmt.Fprintf(&body, "\n• %s %s (%s)", n.Kind, n.Name, n.ProductID)
		if n.Note != "" {
			fmt.Fprintf(&body, ": %s", n.Note)
		}
	}
	if s.DroppedNotable > 0 {
		fmt.Fprintf(&body, "\n• and %d more", s.DroppedNotable)
	}

	lastAlert := "never"
	if !s.LastAlertAt.IsZero() {
		lastAlert = s.LastAlertAt.In(f.loc).Format("02 Jan 15:04:05")
	}

	fields := []entity.MessageField{
		{Name: "Tracked products", Value: fmt.Sprint(stats.Tracked)},
		{Name: "New", Value: fmt.Sprint(s.New)},
		{Name: "Restocked", Value: fmt.Sprint(s.Restocked)},
		{Name: "Out of stock", Value: fmt.Sprint(s.WentOutOfStock)},
		{Name: "Updated", Value: fmt.Sprint(s.Updated)},
		{Name: "Removed", Value: fmt.Sprint(s.Removed)},
		{Name: "Checked", Value: fmt.Sprint(s.Checked)},
		{Name: "Malformed skipped", Value: fmt.Sprint(s.Skipped)},
		{Name: "Fetch failures", Value: fmt.Sprint(s.FetchFailures)},
		{Name: "Alerts sent", Value: fmt.Sprint(s.AlertsSent)},
		{Name: "Failed deliveries", Value: fmt.Sprint(s.FailedDeliveries)},
		{Name: "Deferred alerts", Value: fmt.Sprint(s.Deferred)},
		{Name: "Last alert", Value: lastAlert},
		{Name: "Uptime", Value: formatDuration(stats.Uptime)},
		{Name: "Alerts since start", Value: fmt.Sprint(stats.TotalAlerts)},
	}

	return entity.Message{
		Kind:      entity.MessageSummary,
		Title:     "STATUS SUMMARY",
		Body:      body.String(),
		Fields:    fields,
		Timestamp: now,
	}
}

// Degraded renders the one-off alert sent when the catalog keeps failing.
func (f *Formatter) Degraded(failures int, lastErr error, nextAttempt time.Duration, now time.Time) entity.Message {
	detail := "unknown error"
	if lastErr != nil {
		detail = logging.Redact(lastErr)
	}
	return entity.Message{
		Kind:  entity.MessageHealth,
		Title: "CATALOG UNREACHABLE",
		Body:  fmt.Sprintf("%d consecutive fetch failures. Alerts resume automatically once the catalog answers again.", failures),
		Fields: []entity.MessageField{
			{Name: "Last error", Value: detail},
			{Name: "Next attempt in", Value: formatDuration(nextAttempt)},
			{Name: "Time", Value: now.In(f.loc).Format("15:04:05")},
		},
		Timestamp: now,
	}
}

// Startup renders the message sent once the watcher is running.
func (f *Formatter) Startup(interval time.Duration, channels []string, tracked int, now time.Time) entity.Message {
	return entity.Message{
		Kind:  entity.MessageLifecycle,
		Title: "BOT STARTED",
		Body:  fmt.Sprintf("Watching %s for new products and restocks.", f.collection),
		Fields: []entity.MessageField{
			{Name: "Check interval", Value: formatDuration(interval)},
			{Name: "Channels", Value: strings.Join(channels, ", ")},
			{Name: "Tracked products", Value: fmt.Sprint(tracked)},
		},
		Timestamp: now,
	}
}

// Shutdown renders the message sent when the watcher stops.
func (f *Formatter) Shutdown(uptime time.Duration, alertsSent int, now time.Time) entity.Message {
	return entity.Message{
		Kind:  entity.MessageLifecycle,
		Title: "BOT STOPPED",
		Body:  fmt.Sprintf("Stopped watching %s.", f.collection),
		Fields: []entity.MessageField{
			{Name: "Uptime", Value: formatDuration(uptime)},
			{Name: "Alerts sent", Value: fmt.Sprint(alertsSent)},
		},
		Timestamp: now,
	}
}

// DeepLink returns the app link for a product page URL, or "" when the URL
// carries no numeric product id.
func DeepLink(buyURL string) string {
	m := productPathRe.FindStringSubmatch(buyURL)
	if m == nil {
		return ""
	}
	return "shein://product?id=" + m[1]
}

// FormatPrice renders a product price such as "₹1,299.00", or "N/A".
func FormatPrice(p entity.Product) string {
	if !p.HasPrice {
		return "N/A"
	}
	amount := groupThousands(p.Price.Amount)
	if sym, ok := currencySymbols[p.Price.Currency]; ok {
		return sym + amount
	}
	if p.Price.Currency == "" {
		return amount
	}
	return p.Price.Currency + " " + amount
}

func groupThousands(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

func categoryLabel(c string) string {
	switch c {
	case entity.CategoryMen:
		return "Men"
	case entity.CategoryWomen:
		return "Women"
	default:
		return c
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}
