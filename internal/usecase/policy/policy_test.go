package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/usecase/notify"
	"shein-verse-bot/internal/usecase/snapshot"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// scriptedSink returns queued results in order, then OK.
type scriptedSink struct {
	mu      sync.Mutex
	results []notify.DeliveryResult
	sent    []entity.Message
}

func (s *scriptedSink) Deliver(_ context.Context, msg entity.Message) notify.DeliveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	if len(s.results) == 0 {
		return notify.DeliveryResult{OK: true}
	}
	res := s.results[0]
	s.results = s.results[1:]
	return res
}

func (s *scriptedSink) bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.sent {
		out = append(out, m.Body)
	}
	return out
}

func product(id, category string, price string) entity.Product {
	p := entity.Product{
		ID:        id,
		Name:      "Item " + id,
		BuyURL:    "https://www.sheinindia.in/p-" + id + ".html",
		Available: true,
		Category:  category,
	}
	if price != "" {
		p.Price = entity.Money{Amount: decimal.RequireFromString(price), Currency: "INR"}
		p.HasPrice = true
	}
	return p
}

func newEvent(p entity.Product) entity.ChangeEvent {
	return entity.ChangeEvent{ProductID: p.ID, Kind: entity.ChangeNew, Current: p}
}

func newPolicy(t *testing.T, cfg Config, store *snapshot.Store, sink Sink) (*Policy, *[]time.Duration) {
	t.Helper()
	p := New(cfg, store, sink, nil, nil)
	var waits []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return p, &waits
}

func seed(store *snapshot.Store, products ...entity.Product) {
	for _, p := range products {
		store.Upsert(p, testNow, 1)
	}
}

func TestApply_OrderingMenFirstThenPriceThenID(t *testing.T) {
	store := snapshot.NewStore()
	items := []entity.Product{
		product("w1", entity.CategoryWomen, "100"),
		product("m3", entity.CategoryMen, "900"),
		product("m2", entity.CategoryMen, "300"),
		product("m1", entity.CategoryMen, "300"),
		product("m0", entity.CategoryMen, ""),
	}
	seed(store, items...)

	var events []entity.ChangeEvent
	for _, p := range items {
		events = append(events, newEvent(p))
	}

	sink := &scriptedSink{}
	pol, _ := newPolicy(t, Config{MenFirst: true}, store, sink)

	out := pol.Apply(context.Background(), events)

	want := []string{"Item m1", "Item m2", "Item m3", "Item m0", "Item w1"}
	if diff := cmp.Diff(want, sink.bodies()); diff != "" {
		t.Errorf("delivery order mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, out.Sent, 5)
	assert.Equal(t, 5, out.Attempts)
}

func TestApply_OrderingWithoutMenFirst(t *testing.T) {
	store := snapshot.NewStore()
	items := []entity.Product{
		product("m1", entity.CategoryMen, "300"),
		product("w1", entity.CategoryWomen, "100"),
	}
	seed(store, items...)

	sink := &scriptedSink{}
	pol, _ := newPolicy(t, Config{MenFirst: false}, store, sink)
	pol.Apply(context.Background(), []entity.ChangeEvent{newEvent(items[0]), newEvent(items[1])})

	assert.Equal(t, []string{"Item w1", "Item m1"}, sink.bodies())
}

func TestApply_Suppression(t *testing.T) {
	tests := []struct {
		name     string
		notified entity.NotifiedState
		kind     entity.ChangeKind
		wantSent int
	}{
		{"TC-1: new after none alerts", entity.NotifiedNone, entity.ChangeNew, 1},
		{"TC-2: new already notified is suppressed", entity.NotifiedNew, entity.ChangeNew, 0},
		{"TC-3: restock after out of stock alerts", entity.NotifiedOutOfStock, entity.ChangeRestocked, 1},
		{"TC-4: restock already notified is suppressed", entity.NotifiedRestock, entity.ChangeRestocked, 0},
		{"TC-5: restock after new alerts", entity.NotifiedNew, entity.ChangeRestocked, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := snapshot.NewStore()
			p := product("1", entity.CategoryMen, "499")
			seed(store, p)
			store.MarkNotified("1", tt.notified)

			sink := &scriptedSink{}
			pol, _ := newPolicy(t, Config{MenFirst: true}, store, sink)
			out := pol.Apply(context.Background(), []entity.ChangeEvent{{ProductID: "1", Kind: tt.kind, Current: p}})

			assert.Len(t, out.Sent, tt.wantSent)
			assert.Equal(t, 1-tt.wantSent, out.Suppressed)
			entry, ok := store.Get("1")
			require.True(t, ok)
			assert.Equal(t, tt.kind.TargetState(), entry.Notified)
		})
	}
}

func TestApply_OutOfStockRecordedWithoutAlert(t *testing.T) {
	store := snapshot.NewStore()
	p := product("1", entity.CategoryMen, "499")
	p.Available = false
	seed(store, p)
	store.MarkNotified("1", entity.NotifiedNew)

	sink := &scriptedSink{}
	pol, _ := newPolicy(t, Config{}, store, sink)
	out := pol.Apply(context.Background(), []entity.ChangeEvent{{ProductID: "1", Kind: entity.ChangeWentOutOfStock, Current: p}})

	assert.Empty(t, sink.sent)
	assert.Equal(t, 1, out.OutOfStock)
	entry, _ := store.Get("1")
	assert.Equal(t, entity.NotifiedOutOfStock, entry.Notified)
}

func TestApply_NonAlertKindsIgnored(t *testing.T) {
	store := snapshot.NewStore()
	p := product("1", entity.CategoryMen, "499")
	seed(store, p)

	sink := &scriptedSink{}
	pol, _ := newPolicy(t, Config{}, store, sink)
	out := pol.Apply(context.Background(), []entity.ChangeEvent{
		{ProductID: "1", Kind: entity.ChangeStillAvailable, Current: p, Updated: true},
		{ProductID: "2", Kind: entity.ChangeRemoved, Current: product("2", entity.CategoryMen, "1")},
	})

	assert.Empty(t, sink.sent)
	assert.Equal(t, Outcome{}, out)
}

func TestApply_RateLimitDefersOverflow(t *testing.T) {
	store := snapshot.NewStore()
	var events []entity.ChangeEvent
	for _, id := range []string{"a", "b", "c", "d"} {
		p := product(id, entity.CategoryMen, "100")
		seed(store, p)
		events = append(events, newEvent(p))
	}

	sink := &scriptedSink{}
	pol, _ := newPolicy(t, Config{MaxAlertsPerCycle: 2}, store, sink)
	out := pol.Apply(context.Background(), events)

	assert.Len(t, out.Sent, 2)
	require.Len(t, out.Deferred, 2)
	assert.Equal(t, "c", out.Deferred[0].ProductID)
	assert.Equal(t, "d", out.Deferred[1].ProductID)
	for _, id := range []string{"a", "b", "c", "d"} {
		entry, _ := store.Get(id)
		assert.Equal(t, entity.NotifiedNew, entry.Notified, "product %s", id)
	}
}

func TestApply_RetryOnce(t *testing.T) {
	tests := []struct {
		name         string
		results      []notify.DeliveryResult
		wantSent     int
		wantAttempts int
		wantWaits    []time.Duration
	}{
		{
			name:         "TC-1: transient failure then success",
			results:      []notify.DeliveryResult{{ErrorDetail: "telegram: 502", Retryable: true}},
			wantSent:     1,
			wantAttempts: 2,
			wantWaits:    []time.Duration{time.Second},
		},
		{
			name: "TC-2: two failures give up",
			results: []notify.DeliveryResult{
				{ErrorDetail: "telegram: 502", Retryable: true},
				{ErrorDetail: "telegram: 502", Retryable: true},
			},
			wantSent:     0,
			wantAttempts: 2,
			wantWaits:    []time.Duration{time.Second},
		},
		{
			name:         "TC-3: retry-after honored",
			results:      []notify.DeliveryResult{{ErrorDetail: "telegram: 429", Retryable: true, RetryAfter: 3 * time.Second}},
			wantSent:     1,
			wantAttempts: 2,
			wantWaits:    []time.Duration{3 * time.Second},
		},
		{
			name:         "TC-4: retry-after beyond limit skips retry",
			results:      []notify.DeliveryResult{{ErrorDetail: "telegram: 429", Retryable: true, RetryAfter: time.Minute}},
			wantSent:     0,
			wantAttempts: 1,
		},
		{
			name:         "TC-5: final error not retried",
			results:      []notify.DeliveryResult{{ErrorDetail: "telegram: chat not found"}},
			wantSent:     0,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := snapshot.NewStore()
			p := product("1", entity.CategoryMen, "499")
			seed(store, p)

			sink := &scriptedSink{results: tt.results}
			pol, waits := newPolicy(t, Config{}, store, sink)
			out := pol.Apply(context.Background(), []entity.ChangeEvent{newEvent(p)})

			assert.Len(t, out.Sent, tt.wantSent)
			assert.Equal(t, tt.wantAttempts, out.Attempts)
			assert.Equal(t, tt.wantWaits, *waits)
			if tt.wantSent == 0 {
				require.Len(t, out.Failed, 1)
				assert.ErrorIs(t, out.Failed[0], entity.ErrDeliveryFailed)
				assert.Equal(t, "1", out.Failed[0].ProductID)
			}

			entry, _ := store.Get("1")
			assert.Equal(t, entity.NotifiedNew, entry.Notified, "marked notified regardless of delivery")
		})
	}
}

func TestApply_CanceledContextStopsSending(t *testing.T) {
	store := snapshot.NewStore()
	p := product("1", entity.CategoryMen, "499")
	seed(store, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &scriptedSink{}
	pol, _ := newPolicy(t, Config{}, store, sink)
	out := pol.Apply(ctx, []entity.ChangeEvent{newEvent(p)})

	assert.Empty(t, sink.sent)
	assert.Empty(t, out.Sent)
	entry, _ := store.Get("1")
	assert.Equal(t, entity.NotifiedNone, entry.Notified)
}

func TestSend(t *testing.T) {
	sink := &scriptedSink{results: []notify.DeliveryResult{
		{ErrorDetail: "slack: 500", Retryable: true},
		{ErrorDetail: "slack: 500", Retryable: true},
	}}
	pol, _ := newPolicy(t, Config{}, snapshot.NewStore(), sink)

	err := pol.Send(context.Background(), entity.Message{Kind: entity.MessageSummary, Title: "STATUS SUMMARY"})

	var derr *entity.DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Contains(t, derr.Detail, "slack: 500")
	assert.Len(t, sink.sent, 2)

	assert.NoError(t, pol.Send(context.Background(), entity.Message{Title: "ok"}))
}
