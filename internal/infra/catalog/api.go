package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/resilience/circuitbreaker"
	"shein-verse-bot/internal/resilience/retry"
)

// goodsListKeys are the response fields that may hold the goods array,
// checked at the top level and inside "info" and "data".
var goodsListKeys = []string{"goods", "goodsList", "products", "list"}

// APISource fetches the collection from the storefront's goods list endpoint.
type APISource struct {
	req            *requester
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewAPISource creates an APISource. A nil client gets NewHTTPClient.
func NewAPISource(client *http.Client, cfg Config) *APISource {
	return &APISource{
		req:            newRequester(client, cfg),
		circuitBreaker: circuitbreaker.New(circuitbreaker.CatalogConfig("catalog-api")),
		retryConfig:    retry.CatalogFetchConfig(),
	}
}

// Name implements Strategy.
func (a *APISource) Name() string { return StrategyAPI }

// Fetch returns the raw goods entries of the first page.
func (a *APISource) Fetch(ctx context.Context) ([]entity.RawRecord, error) {
	return guarded(ctx, a.circuitBreaker, a.retryConfig, func() ([]entity.RawRecord, error) {
		return a.doFetch(ctx)
	})
}

type goodsListRequest struct {
	FilterParams goodsListFilter `json:"filterParams"`
	Language     string          `json:"language"`
	Country      string          `json:"country,omitempty"`
	Currency     string          `json:"currency,omitempty"`
}

type goodsListFilter struct {
	CatID    string `json:"catId,omitempty"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Sort     string `json:"sort"`
}

func (a *APISource) doFetch(ctx context.Context) ([]entity.RawRecord, error) {
	cfg := a.req.cfg
	payload, err := json.Marshal(goodsListRequest{
		FilterParams: goodsListFilter{
			CatID:    cfg.CategoryID,
			Page:     1,
			PageSize: cfg.PageSize,
			Sort:     "7",
		},
		Language: "en",
		Country:  cfg.Country,
		Currency: cfg.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("encode goods list request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", cfg.BaseURL)

	body, err := a.req.do(req, "application/json")
	if err != nil {
		return nil, err
	}
	return decodeGoodsList(body)
}

// decodeGoodsList extracts the goods array from a goods list response.
// Numbers are kept as json.Number so ids never pass through float64.
func decodeGoodsList(body []byte) ([]entity.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, &entity.FetchError{Reason: entity.FetchReasonDecode, Err: err}
	}

	items, ok := findGoods(doc)
	if !ok {
		return nil, &entity.FetchError{Reason: entity.FetchReasonDecode, Err: fmt.Errorf("no goods list in response")}
	}

	records := make([]entity.RawRecord, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			records = append(records, entity.RawRecord(m))
		}
	}
	if len(records) == 0 {
		return nil, &entity.FetchError{Reason: entity.FetchReasonEmpty}
	}
	return records, nil
}

func findGoods(doc map[string]any) ([]any, bool) {
	for _, scope := range []map[string]any{doc, nested(doc, "info"), nested(doc, "data")} {
		for _, key := range goodsListKeys {
			if items, ok := scope[key].([]any); ok {
				return items, true
			}
		}
	}
	return nil, false
}

func nested(doc map[string]any, key string) map[string]any {
	m, _ := doc[key].(map[string]any)
	return m
}
