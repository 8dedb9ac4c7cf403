package catalog

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/resilience/circuitbreaker"
	"shein-verse-bot/internal/resilience/retry"
)

// FeedSource reads a product feed (RSS or Atom, optionally with Google
// Merchant "g:" fields) for the collection.
type FeedSource struct {
	req            *requester
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewFeedSource creates a FeedSource for cfg.FeedURL. A nil client gets NewHTTPClient.
func NewFeedSource(client *http.Client, cfg Config) *FeedSource {
	return &FeedSource{
		req:            newRequester(client, cfg),
		circuitBreaker: circuitbreaker.New(circuitbreaker.CatalogConfig("catalog-feed")),
		retryConfig:    retry.CatalogFetchConfig(),
	}
}

// Name implements Strategy.
func (f *FeedSource) Name() string { return StrategyFeed }

// Fetch parses the feed into raw records.
func (f *FeedSource) Fetch(ctx context.Context) ([]entity.RawRecord, error) {
	return guarded(ctx, f.circuitBreaker, f.retryConfig, func() ([]entity.RawRecord, error) {
		return f.doFetch(ctx)
	})
}

func (f *FeedSource) doFetch(ctx context.Context) ([]entity.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.req.cfg.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	body, err := f.req.do(req, "application/rss+xml,application/atom+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &entity.FetchError{Reason: entity.FetchReasonDecode, Err: fmt.Errorf("parse feed: %w", err)}
	}

	records := make([]entity.RawRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		records = append(records, itemRecord(item))
	}
	if len(records) == 0 {
		return nil, &entity.FetchError{Reason: entity.FetchReasonEmpty, Err: fmt.Errorf("feed has no items")}
	}
	return records, nil
}

func itemRecord(item *gofeed.Item) entity.RawRecord {
	rec := entity.RawRecord{}

	id := merchantField(item, "id")
	if id == "" {
		id = item.GUID
	}
	if id != "" {
		rec["goods_id"] = id
	}
	if title := strings.TrimSpace(item.Title); title != "" {
		rec["goods_name"] = title
	}
	if price := merchantField(item, "sale_price"); price != "" {
		rec["salePrice"] = price
	} else if price := merchantField(item, "price"); price != "" {
		rec["salePrice"] = price
	}
	if item.Link != "" {
		rec["goods_url_path"] = item.Link
	}

	switch {
	case merchantField(item, "image_link") != "":
		rec["goods_img"] = merchantField(item, "image_link")
	case item.Image != nil && item.Image.URL != "":
		rec["goods_img"] = item.Image.URL
	case len(item.Enclosures) > 0:
		rec["goods_img"] = item.Enclosures[0].URL
	}

	if avail := merchantField(item, "availability"); avail != "" {
		rec["stock_status"] = strings.ReplaceAll(strings.ToLower(avail), " ", "_")
	}
	if gender := merchantField(item, "gender"); gender != "" {
		rec["gender"] = gender
	} else if len(item.Categories) > 0 {
		rec["category"] = strings.Join(item.Categories, " ")
	}
	if size := merchantField(item, "size"); size != "" {
		rec["sizes"] = strings.Split(size, ",")
	}
	return rec
}

// merchantField reads a Google Merchant extension element such as <g:price>.
func merchantField(item *gofeed.Item, name string) string {
	ns, ok := item.Extensions["g"]
	if !ok {
		return ""
	}
	if exts := ns[name]; len(exts) > 0 {
		return strings.TrimSpace(exts[0].Value)
	}
	return ""
}
