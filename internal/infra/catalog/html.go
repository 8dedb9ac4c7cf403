package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/resilience/circuitbreaker"
	"shein-verse-bot/internal/resilience/retry"
)

// itemSelectors are tried in order; the first one that matches anything is used.
var itemSelectors = []string{
	".S-product-item",
	".c-product-list__item",
	".product-card",
	".j-expose__product-item",
	"div[data-product-id]",
}

// priceText matches the first amount in a price label, keeping its currency marker.
var priceText = regexp.MustCompile(`(?i)(₹|rs\.?|inr|\$|€|£)?\s*\d[\d,]*(\.\d+)?`)

// HTMLSource scrapes product cards from the collection listing page.
type HTMLSource struct {
	name           string
	pageURL        string
	req            *requester
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewHTMLSource creates an HTMLSource. A nil client gets NewHTTPClient.
func NewHTMLSource(client *http.Client, cfg Config) *HTMLSource {
	return &HTMLSource{
		name:           StrategyHTML,
		pageURL:        cfg.CollectionURL(),
		req:            newRequester(client, cfg),
		circuitBreaker: circuitbreaker.New(circuitbreaker.CatalogConfig("catalog-html")),
		retryConfig:    retry.CatalogFetchConfig(),
	}
}

// NewMobileSource scrapes the listing on the mobile storefront with a phone
// User-Agent. It has its own circuit breaker, so a blocked desktop site does
// not keep it closed.
func NewMobileSource(client *http.Client, cfg Config) *HTMLSource {
	cfg.UserAgent = mobileUserAgent
	return &HTMLSource{
		name:           StrategyMobile,
		pageURL:        cfg.MobileURL(),
		req:            newRequester(client, cfg),
		circuitBreaker: circuitbreaker.New(circuitbreaker.CatalogConfig("catalog-mobile")),
		retryConfig:    retry.CatalogFetchConfig(),
	}
}

// Name implements Strategy.
func (h *HTMLSource) Name() string { return h.name }

// Fetch scrapes the listing page.
func (h *HTMLSource) Fetch(ctx context.Context) ([]entity.RawRecord, error) {
	return guarded(ctx, h.circuitBreaker, h.retryConfig, func() ([]entity.RawRecord, error) {
		return h.doFetch(ctx)
	})
}

func (h *HTMLSource) doFetch(ctx context.Context) ([]entity.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	body, err := h.req.do(req, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &entity.FetchError{Reason: entity.FetchReasonDecode, Err: fmt.Errorf("parse HTML: %w", err)}
	}

	records := extractCards(doc)
	if len(records) == 0 {
		return nil, &entity.FetchError{Reason: entity.FetchReasonEmpty, Err: fmt.Errorf("no product cards found")}
	}
	return records, nil
}

// extractCards turns product cards into raw records with the same keys the
// goods list API uses. Cards without an id are kept; the normalizer rejects them.
func extractCards(doc *goquery.Document) []entity.RawRecord {
	var records []entity.RawRecord
	for _, selector := range itemSelectors {
		cards := doc.Find(selector)
		if cards.Length() == 0 {
			continue
		}
		slog.Debug("product cards matched", slog.String("selector", selector), slog.Int("count", cards.Length()))

		cards.Each(func(_ int, card *goquery.Selection) {
			records = append(records, cardRecord(card))
		})
		break
	}
	return records
}

func cardRecord(card *goquery.Selection) entity.RawRecord {
	rec := entity.RawRecord{}

	if id := firstAttr(card, "data-product-id", "data-goods-id", "data-id"); id != "" {
		rec["goods_id"] = id
	}
	if name := strings.TrimSpace(card.Find(".product-name, .goods-name, .name").First().Text()); name != "" {
		rec["goods_name"] = name
	} else if title, ok := card.Find("a[title]").First().Attr("title"); ok {
		rec["goods_name"] = strings.TrimSpace(title)
	}
	label := card.Find(".price, .current-price, .goods-price").First().Text()
	if price := strings.TrimSpace(priceText.FindString(label)); price != "" {
		rec["salePrice"] = price
	}

	img := card.Find("img").First()
	if src := firstAttr(img, "data-src", "src"); src != "" {
		rec["goods_img"] = src
	}
	if href, ok := card.Find("a[href]").First().Attr("href"); ok {
		rec["goods_url_path"] = strings.TrimSpace(href)
	}

	if cat := firstAttr(card, "data-cat-id", "data-category-id"); cat != "" {
		rec["cat_id"] = cat
	}

	var sizes []any
	card.Find("[data-size]").Each(func(_ int, s *goquery.Selection) {
		label, _ := s.Attr("data-size")
		sizes = append(sizes, map[string]any{"size": strings.TrimSpace(label), "in_stock": !soldOut(s)})
	})
	if len(sizes) > 0 {
		rec["sizes"] = sizes
	} else {
		rec["is_sold_out"] = soldOut(card)
	}
	return rec
}

func soldOut(s *goquery.Selection) bool {
	if _, disabled := s.Attr("disabled"); disabled {
		return true
	}
	if s.HasClass("sold-out") || s.HasClass("out-of-stock") || s.HasClass("soldout") {
		return true
	}
	if s.Find(".sold-out, .soldout, .out-of-stock").Length() > 0 {
		return true
	}
	return strings.Contains(strings.ToLower(s.Text()), "sold out")
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v, ok := s.Attr(n); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
