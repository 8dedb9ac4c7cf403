package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestVariantSignatureOf(t *testing.T) {
	t.Run("order and duplicates do not matter", func(t *testing.T) {
		a := VariantSignatureOf([]string{"M", "S", "L"})
		b := VariantSignatureOf([]string{"L", " M", "S", "S"})
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("empty set has no signature", func(t *testing.T) {
		assert.Equal(t, "", VariantSignatureOf(nil))
		assert.Equal(t, "", VariantSignatureOf([]string{}))
	})

	t.Run("different sets differ", func(t *testing.T) {
		assert.NotEqual(t, VariantSignatureOf([]string{"S"}), VariantSignatureOf([]string{"S", "M"}))
	})
}

func TestProduct_DiffFields(t *testing.T) {
	base := Product{
		ID:        "42",
		Name:      "Oversized Tee",
		Price:     Money{Amount: decimal.RequireFromString("499"), Currency: "INR"},
		HasPrice:  true,
		BuyURL:    "https://example.com/p-42.html",
		Available: true,
		Category:  CategoryMen,
	}

	t.Run("equal values", func(t *testing.T) {
		other := base
		other.Price.Amount = decimal.RequireFromString("499.00")
		assert.Empty(t, base.DiffFields(other))
		assert.True(t, base.Equal(other))
	})

	t.Run("price and name", func(t *testing.T) {
		other := base
		other.Name = "Oversized Tee v2"
		other.Price.Amount = decimal.RequireFromString("399")
		assert.Equal(t, []string{"name", "price"}, base.DiffFields(other))
		assert.False(t, base.Equal(other))
	})

	t.Run("availability is not a field diff", func(t *testing.T) {
		other := base
		other.Available = false
		assert.Empty(t, base.DiffFields(other))
		assert.False(t, base.Equal(other))
	})
}

func TestProduct_AddedVariants(t *testing.T) {
	prev := Product{Variants: []string{"M", "S"}}
	cur := Product{Variants: []string{"L", "M", "S", "XL"}}

	assert.Equal(t, []string{"L", "XL"}, cur.AddedVariants(prev))
	assert.Empty(t, prev.AddedVariants(cur))
}

func TestCycleSummary_Count(t *testing.T) {
	s := NewCycleSummary(fixedTime)
	s.Count(ChangeNew, false)
	s.Count(ChangeRestocked, true)
	s.Count(ChangeStillAvailable, true)
	s.Count(ChangeUnchanged, false)
	s.Count(ChangeRemoved, false)

	assert.Equal(t, 1, s.New)
	assert.Equal(t, 1, s.Restocked)
	assert.Equal(t, 2, s.Updated)
	assert.Equal(t, 1, s.Unchanged)
	assert.Equal(t, 1, s.Removed)
}

func TestCycleSummary_ResetKeepsLastAlert(t *testing.T) {
	s := NewCycleSummary(fixedTime)
	s.New = 3
	s.LastAlertAt = fixedTime.Add(5)
	s.AddNotable(NotableEvent{ProductID: "1"})

	s.Reset(fixedTime.Add(10))

	assert.Equal(t, 0, s.New)
	assert.Empty(t, s.Notable)
	assert.Equal(t, fixedTime.Add(5), s.LastAlertAt)
	assert.Equal(t, fixedTime.Add(10), s.Since)
}

func TestCycleSummary_NotableBounded(t *testing.T) {
	s := NewCycleSummary(fixedTime)
	for i := 0; i < maxNotableEvents+5; i++ {
		s.AddNotable(NotableEvent{ProductID: "x"})
	}
	assert.Len(t, s.Notable, maxNotableEvents)
	assert.Equal(t, 5, s.DroppedNotable)
}

func TestNotifiedState_RoundTrip(t *testing.T) {
	for _, st := range []NotifiedState{NotifiedNone, NotifiedNew, NotifiedRestock, NotifiedOutOfStock} {
		assert.Equal(t, st, ParseNotifiedState(st.String()))
	}
	assert.Equal(t, NotifiedNone, ParseNotifiedState("garbage"))
}

func TestChangeKind_TargetState(t *testing.T) {
	assert.Equal(t, NotifiedNew, ChangeNew.TargetState())
	assert.Equal(t, NotifiedRestock, ChangeRestocked.TargetState())
	assert.Equal(t, NotifiedOutOfStock, ChangeWentOutOfStock.TargetState())
	assert.True(t, ChangeNew.Alertable())
	assert.False(t, ChangeRemoved.Alertable())
}

var fixedTime = mustTime("2026-01-02T15:04:05Z")
