package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/observability/logging"
	"shein-verse-bot/internal/observability/metrics"
	"shein-verse-bot/internal/resilience/circuitbreaker"
)

// StrategyDetail labels product page fetches in metrics.
const StrategyDetail = "detail"

// sizeSelectors match size pickers on a product page.
const sizeSelectors = ".product-size-select option, .sku-item, .size-option, [data-size]"

// Listing keys read by the size lookup. They mirror the keys the normalizer
// accepts for the same fields.
var (
	detailIDKeys      = []string{"goods_id", "goodsId", "id", "product_id", "productId", "sku", "goods_sn"}
	detailURLKeys     = []string{"goods_url_path", "goodsUrlPath", "url", "link", "product_url", "productUrl"}
	detailVariantKeys = []string{"sizes", "available_sizes", "variants", "skus", "sku_list", "size_list"}
	detailSoldOutKeys = []string{"is_sold_out", "soldOut", "sold_out"}
	detailInStockKeys = []string{"in_stock", "inStock", "available", "is_available", "isAvailable"}
)

type sizeInfo struct {
	label    string
	quantity int
}

type sizeEntry struct {
	sizes     []sizeInfo
	fetchedAt time.Time
}

// SizeLookup completes listing records that carry no size data by reading
// their product pages. Page fetches are paced by a rate limiter and capped per
// call; results are cached per product for the configured TTL. A page without
// size pickers is cached as empty so it is not refetched every cycle.
type SizeLookup struct {
	req            *requester
	base           *url.URL
	limit          int
	ttl            time.Duration
	limiter        *rate.Limiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	now            func() time.Time

	mu    sync.Mutex
	cache map[string]sizeEntry
}

// NewSizeLookup creates a SizeLookup. A nil client gets NewHTTPClient.
func NewSizeLookup(client *http.Client, cfg Config) *SizeLookup {
	limit := cfg.DetailLimit
	if limit < 1 {
		limit = defaultDetailLimit
	}
	interval := cfg.DetailInterval
	if interval <= 0 {
		interval = defaultDetailInterval
	}
	ttl := cfg.DetailTTL
	if ttl <= 0 {
		ttl = defaultDetailTTL
	}
	base, _ := url.Parse(cfg.BaseURL)
	return &SizeLookup{
		req:            newRequester(client, cfg),
		base:           base,
		limit:          limit,
		ttl:            ttl,
		limiter:        rate.NewLimiter(rate.Every(interval), 1),
		circuitBreaker: circuitbreaker.New(circuitbreaker.CatalogConfig("catalog-detail")),
		now:            time.Now,
		cache:          make(map[string]sizeEntry),
	}
}

type sizeCandidate struct {
	index   int
	id      string
	pageURL string
}

// Enrich sets "sizes" on records that lack variant data and are not marked
// sold out, and returns how many records it filled. Failures are logged and
// leave records unchanged. Calls are serialized.
func (l *SizeLookup) Enrich(ctx context.Context, records []entity.RawRecord) int {
	logger := logging.FromContext(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	var candidates []sizeCandidate
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		if !needsSizes(rec) {
			continue
		}
		id := detailString(rec, detailIDKeys)
		page := l.pageURL(rec)
		if id == "" || page == "" {
			continue
		}
		seen[id] = true
		candidates = append(candidates, sizeCandidate{index: i, id: id, pageURL: page})
	}

	for id := range l.cache {
		if !seen[id] {
			delete(l.cache, id)
		}
	}

	now := l.now()
	var due []sizeCandidate
	for _, c := range candidates {
		entry, ok := l.cache[c.id]
		if !ok || now.Sub(entry.fetchedAt) >= l.ttl {
			due = append(due, c)
		}
	}
	// Never-fetched pages first, then the stalest.
	sort.SliceStable(due, func(i, j int) bool {
		return l.cache[due[i].id].fetchedAt.Before(l.cache[due[j].id].fetchedAt)
	})
	if len(due) > l.limit {
		due = due[:l.limit]
	}

	for _, c := range due {
		if err := l.limiter.Wait(ctx); err != nil {
			break
		}
		start := time.Now()
		sizes, err := l.fetch(ctx, c.pageURL)
		metrics.RecordFetch(StrategyDetail, err == nil, time.Since(start))
		if err != nil {
			logger.Warn("product page fetch failed",
				slog.String("product_id", c.id),
				slog.String("reason", reasonOf(err)),
				slog.Any("error", err))
			if stopsLookup(ctx, err) {
				break
			}
			continue
		}
		l.cache[c.id] = sizeEntry{sizes: sizes, fetchedAt: l.now()}
	}

	filled := 0
	for _, c := range candidates {
		entry, ok := l.cache[c.id]
		if !ok || len(entry.sizes) == 0 {
			continue
		}
		records[c.index]["sizes"] = sizesValue(entry.sizes)
		filled++
	}
	return filled
}

func (l *SizeLookup) fetch(ctx context.Context, pageURL string) ([]sizeInfo, error) {
	var sizes []sizeInfo
	err := l.circuitBreaker.Run(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		body, err := l.req.do(req, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if err != nil {
			return err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return &entity.FetchError{Reason: entity.FetchReasonDecode, Err: fmt.Errorf("parse HTML: %w", err)}
		}
		sizes = parseSizes(doc)
		return nil
	})
	if err != nil && circuitbreaker.IsOpenError(err) {
		return nil, &entity.FetchError{Reason: entity.FetchReasonCircuitOpen, Err: err}
	}
	return sizes, err
}

// stopsLookup reports whether the remaining pages should wait for the next call.
func stopsLookup(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var ferr *entity.FetchError
	if !errors.As(err, &ferr) {
		return false
	}
	switch ferr.Reason {
	case entity.FetchReasonBlocked, entity.FetchReasonRateLimited, entity.FetchReasonCircuitOpen:
		return true
	}
	return false
}

func (l *SizeLookup) pageURL(rec entity.RawRecord) string {
	raw := detailString(rec, detailURLKeys)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	if l.base == nil || l.base.Host == "" {
		return ""
	}
	return l.base.ResolveReference(ref).String()
}

// parseSizes reads size pickers. Labels come from the element text, or its
// data-size attribute when the text is empty; labels of 10 or more runes are
// not sizes. Disabled or sold-out pickers get quantity 0, others take
// data-stock or data-quantity and default to 1.
func parseSizes(doc *goquery.Document) []sizeInfo {
	var sizes []sizeInfo
	seen := make(map[string]bool)
	doc.Find(sizeSelectors).Each(func(_ int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Text())
		if label == "" {
			label = firstAttr(s, "data-size")
		}
		if label == "" || utf8.RuneCountInString(label) >= 10 || seen[label] {
			return
		}
		if goquery.NodeName(s) == "option" {
			if v, ok := s.Attr("value"); ok && strings.TrimSpace(v) == "" {
				return
			}
		}
		seen[label] = true

		qty := 1
		if soldOut(s) || s.HasClass("disabled") {
			qty = 0
		} else if n, err := strconv.Atoi(firstAttr(s, "data-stock", "data-quantity")); err == nil && n >= 0 {
			qty = n
		}
		sizes = append(sizes, sizeInfo{label: label, quantity: qty})
	})
	return sizes
}

func sizesValue(sizes []sizeInfo) []any {
	out := make([]any, len(sizes))
	for i, s := range sizes {
		out[i] = map[string]any{
			"size":     s.label,
			"in_stock": s.quantity > 0,
			"quantity": float64(s.quantity),
		}
	}
	return out
}

// needsSizes reports whether rec has no variant data and is not marked sold out.
func needsSizes(rec entity.RawRecord) bool {
	for _, k := range detailVariantKeys {
		if v, ok := rec[k]; ok && v != nil {
			return false
		}
	}
	for _, k := range detailSoldOutKeys {
		if b, ok := flagValue(rec[k]); ok && b {
			return false
		}
	}
	for _, k := range detailInStockKeys {
		if b, ok := flagValue(rec[k]); ok && !b {
			return false
		}
	}
	return true
}

func flagValue(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	}
	return false, false
}

func detailString(rec entity.RawRecord, keys []string) string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}
