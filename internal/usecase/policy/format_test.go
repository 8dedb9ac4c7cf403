package policy

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shein-verse-bot/internal/domain/entity"
)

func TestDeepLink(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.sheinindia.in/men-tee-p-443322110.html", "shein://product?id=443322110"},
		{"https://www.sheinindia.in/p-12.html?src=verse", "shein://product?id=12"},
		{"https://www.sheinindia.in/product/abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeepLink(tt.url), tt.url)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name string
		p    entity.Product
		want string
	}{
		{"TC-1: rupees with grouping", entity.Product{HasPrice: true, Price: entity.Money{Amount: decimal.RequireFromString("1299"), Currency: "INR"}}, "₹1,299.00"},
		{"TC-2: dollars", entity.Product{HasPrice: true, Price: entity.Money{Amount: decimal.RequireFromString("12.5"), Currency: "USD"}}, "$12.50"},
		{"TC-3: million", entity.Product{HasPrice: true, Price: entity.Money{Amount: decimal.RequireFromString("1234567.891"), Currency: "EUR"}}, "€1,234,567.89"},
		{"TC-4: unknown currency code", entity.Product{HasPrice: true, Price: entity.Money{Amount: decimal.RequireFromString("10"), Currency: "AED"}}, "AED 10.00"},
		{"TC-5: no price", entity.Product{}, "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPrice(tt.p))
		})
	}
}

func fieldValue(msg entity.Message, name string) (string, bool) {
	for _, f := range msg.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func TestFormatter_Alert(t *testing.T) {
	f := NewFormatter(FormatConfig{})
	p := product("443322110", entity.CategoryMen, "799")
	p.Name = "Verse Graphic Tee"
	p.ImageURL = "https://img.example.com/tee.jpg"
	p.Variants = []string{"L", "M"}

	t.Run("TC-1: new product", func(t *testing.T) {
		msg := f.Alert(newEvent(p), testNow)

		assert.Equal(t, entity.MessageAlert, msg.Kind)
		assert.Equal(t, "NEW PRODUCT", msg.Title)
		assert.Equal(t, "Verse Graphic Tee", msg.Body)
		assert.Equal(t, p.ImageURL, msg.ImageURL)
		price, _ := fieldValue(msg, "Price")
		assert.Equal(t, "₹799.00", price)
		sizes, _ := fieldValue(msg, "Sizes")
		assert.Equal(t, "L, M", sizes)
		ts, _ := fieldValue(msg, "Time")
		assert.Equal(t, "10:00:00", ts)
		require.Len(t, msg.Buttons, 2)
		assert.Equal(t, entity.Button{Label: "Buy now", URL: p.BuyURL}, msg.Buttons[0])
		assert.Equal(t, "shein://product?id=443322110", msg.Buttons[1].URL)
	})

	t.Run("TC-2: partial restock lists returning sizes", func(t *testing.T) {
		prev := p
		prev.Variants = []string{"M"}
		cur := p
		cur.Variants = []string{"L", "M", "XL"}
		msg := f.Alert(entity.ChangeEvent{ProductID: p.ID, Kind: entity.ChangeRestocked, Previous: &prev, Current: cur, PartialVariant: true}, testNow)

		assert.Equal(t, "RESTOCK (new sizes)", msg.Title)
		back, ok := fieldValue(msg, "Back in stock")
		require.True(t, ok)
		assert.Equal(t, "L, XL", back)
	})

	t.Run("TC-3: restock with price drop", func(t *testing.T) {
		prev := p
		prev.Available = false
		prev.Price.Amount = decimal.RequireFromString("999")
		msg := f.Alert(entity.ChangeEvent{ProductID: p.ID, Kind: entity.ChangeRestocked, Previous: &prev, Current: p}, testNow)

		assert.Equal(t, "RESTOCK", msg.Title)
		was, ok := fieldValue(msg, "Was")
		require.True(t, ok)
		assert.Equal(t, "₹999.00", was)
	})

	t.Run("TC-4: no sizes and no deep link", func(t *testing.T) {
		bare := product("x", "", "")
		bare.BuyURL = "https://example.com/item/x"
		msg := f.Alert(newEvent(bare), testNow)

		sizes, _ := fieldValue(msg, "Sizes")
		assert.Equal(t, "Check product page for sizes", sizes)
		price, _ := fieldValue(msg, "Price")
		assert.Equal(t, "N/A", price)
		assert.Len(t, msg.Buttons, 1)
		_, hasCategory := fieldValue(msg, "Category")
		assert.False(t, hasCategory)
	})
}

func TestFormatter_Summary(t *testing.T) {
	f := NewFormatter(FormatConfig{})
	s := entity.NewCycleSummary(testNow.Add(-2 * time.Hour))
	s.Cycles = 240
	s.New = 3
	s.Restocked = 1
	s.AddNotable(entity.NotableEvent{Kind: entity.ChangeNew, ProductID: "7", Name: "Cargo Pants", Note: "deferred"})

	msg := f.Summary(*s, SummaryStats{Tracked: 58, Uptime: 26 * time.Hour, TotalAlerts: 9, Stale: true, StaleAfter: 2 * time.Hour}, testNow)

	assert.Equal(t, entity.MessageSummary, msg.Kind)
	assert.Contains(t, msg.Body, "240 cycles")
	assert.Contains(t, msg.Body, "No alert delivered in the last 2h0m0s.")
	assert.Contains(t, msg.Body, "NEW Cargo Pants (7): deferred")
	tracked, _ := fieldValue(msg, "Tracked products")
	assert.Equal(t, "58", tracked)
	last, _ := fieldValue(msg, "Last alert")
	assert.Equal(t, "never", last)
	total, _ := fieldValue(msg, "Alerts since start")
	assert.Equal(t, "9", total)
}

func TestFormatter_Lifecycle(t *testing.T) {
	f := NewFormatter(FormatConfig{Collection: "Verse Men"})

	start := f.Startup(30*time.Second, []string{"telegram", "discord"}, 12, testNow)
	assert.Equal(t, "BOT STARTED", start.Title)
	assert.True(t, strings.Contains(start.Body, "Verse Men"))
	ch, _ := fieldValue(start, "Channels")
	assert.Equal(t, "telegram, discord", ch)

	stop := f.Shutdown(90*time.Minute, 4, testNow)
	assert.Equal(t, "BOT STOPPED", stop.Title)
	up, _ := fieldValue(stop, "Uptime")
	assert.Equal(t, "1h30m0s", up)

	deg := f.Degraded(3, errors.New("catalog fetch failed: blocked"), 2*time.Minute, testNow)
	assert.Equal(t, entity.MessageHealth, deg.Kind)
	assert.Contains(t, deg.Body, "3 consecutive fetch failures")
	last, _ := fieldValue(deg, "Last error")
	assert.Equal(t, "catalog fetch failed: blocked", last)
}
