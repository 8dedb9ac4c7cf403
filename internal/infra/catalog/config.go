// Package catalog fetches raw product records for the watched collection.
//
// Strategies are tried in order: the storefront's goods list JSON API, a
// scrape of the HTML listing page, the same listing on the mobile site, and an
// optional product feed. The first strategy that returns records wins.
// Listing records without sizes can be completed from product pages
// (SizeLookup).
package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shein-verse-bot/internal/domain/entity"
)

// Strategy names, also used as metric labels.
const (
	StrategyAPI    = "api"
	StrategyHTML   = "html"
	StrategyMobile = "mobile"
	StrategyFeed   = "feed"
)

const (
	defaultAPIPath     = "/api/user/goods/findGoodsListByFilter"
	defaultPageSize    = 60
	defaultTimeout     = 20 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	defaultDetailLimit    = 5
	defaultDetailInterval = 2 * time.Second
	defaultDetailTTL      = 15 * time.Minute
)

// directProxy in a proxy list stands for a direct connection.
const directProxy = "direct"

// Config describes where the collection lives and how to request it.
type Config struct {
	// BaseURL is the storefront origin, e.g. https://www.sheinindia.in.
	BaseURL string

	// CollectionPath is the listing page of the collection, relative to BaseURL.
	CollectionPath string

	// APIPath is the goods list endpoint. Default: /api/user/goods/findGoodsListByFilter
	APIPath string

	// CategoryID filters the goods list request. Optional.
	CategoryID string

	// Country and Currency are passed to the goods list API.
	Country  string
	Currency string

	// FeedURL enables the feed strategy when set.
	FeedURL string

	// MobileBaseURL is the mobile storefront origin. Empty derives it from
	// BaseURL: https://www.example.in becomes https://m.example.in.
	MobileBaseURL string

	// Proxies are rotated per request; "direct" entries skip the proxy.
	// Empty uses the HTTP_PROXY environment variables. Entries may carry
	// credentials.
	Proxies []string

	// SessionCookies is a cookie header value: "name=value; name2=value2".
	SessionCookies string

	// UserAgent pins the User-Agent header. Empty rotates through browser agents.
	UserAgent string

	RequestTimeout time.Duration
	PageSize       int
	MaxBodySize    int64

	// Strategies lists enabled strategies in order. Empty means all of them.
	Strategies []string

	// DetailSizes reads sizes from product pages for records without them.
	// DetailLimit pages are fetched per cycle at most, one per DetailInterval;
	// sizes younger than DetailTTL are reused.
	DetailSizes    bool
	DetailLimit    int
	DetailInterval time.Duration
	DetailTTL      time.Duration
}

// DefaultConfig returns a Config with request defaults filled in.
func DefaultConfig() Config {
	return Config{
		APIPath:        defaultAPIPath,
		Country:        "IN",
		Currency:       "INR",
		RequestTimeout: defaultTimeout,
		PageSize:       defaultPageSize,
		MaxBodySize:    defaultMaxBodySize,
		Strategies:     []string{StrategyAPI, StrategyHTML, StrategyMobile, StrategyFeed},
		DetailLimit:    defaultDetailLimit,
		DetailInterval: defaultDetailInterval,
		DetailTTL:      defaultDetailTTL,
	}
}

// Validate reports misconfiguration as *entity.ConfigurationError values.
func (c Config) Validate() error {
	var errs []error
	if err := entity.ValidateURL("catalog base URL", c.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.CollectionPath == "" {
		errs = append(errs, &entity.ConfigurationError{Field: "catalog collection path", Message: "is required"})
	} else if !strings.HasPrefix(c.CollectionPath, "/") {
		errs = append(errs, &entity.ConfigurationError{Field: "catalog collection path", Message: "must start with /"})
	}
	if c.FeedURL != "" {
		if err := entity.ValidateURL("catalog feed URL", c.FeedURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.MobileBaseURL != "" {
		if err := entity.ValidateURL("catalog mobile base URL", c.MobileBaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := c.ProxyURLs(); err != nil {
		errs = append(errs, err)
	}
	if c.DetailSizes {
		if c.DetailLimit < 1 {
			errs = append(errs, &entity.ConfigurationError{Field: "catalog detail limit", Message: "must be at least 1"})
		}
		if c.DetailInterval <= 0 || c.DetailTTL <= 0 {
			errs = append(errs, &entity.ConfigurationError{Field: "catalog detail pacing", Message: "interval and TTL must be positive"})
		}
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, &entity.ConfigurationError{Field: "catalog request timeout", Message: "must be positive"})
	}
	if c.PageSize < 1 || c.PageSize > 200 {
		errs = append(errs, &entity.ConfigurationError{
			Field:   "catalog page size",
			Message: fmt.Sprintf("must be between 1 and 200, got %d", c.PageSize),
		})
	}
	if c.MaxBodySize < 1024 {
		errs = append(errs, &entity.ConfigurationError{Field: "catalog max body size", Message: "must be at least 1KB"})
	}
	for _, s := range c.Strategies {
		switch s {
		case StrategyAPI, StrategyHTML, StrategyMobile:
		case StrategyFeed:
			if c.FeedURL == "" {
				errs = append(errs, &entity.ConfigurationError{Field: "catalog strategies", Message: "feed strategy needs a feed URL"})
			}
		default:
			errs = append(errs, &entity.ConfigurationError{Field: "catalog strategies", Message: fmt.Sprintf("unknown strategy %q", s)})
		}
	}
	return errors.Join(errs...)
}

// CollectionURL is the absolute listing page URL.
func (c Config) CollectionURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.CollectionPath
}

// MobileURL is the listing page on the mobile storefront.
func (c Config) MobileURL() string {
	base := strings.TrimRight(c.MobileBaseURL, "/")
	if base == "" {
		base = mobileOrigin(c.BaseURL)
	}
	return base + c.CollectionPath
}

func mobileOrigin(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return strings.TrimRight(base, "/")
	}
	host := strings.TrimPrefix(u.Host, "www.")
	if !strings.HasPrefix(host, "m.") {
		host = "m." + host
	}
	return u.Scheme + "://" + host
}

// ProxyURLs parses Proxies. A nil element means a direct connection.
// Error messages leave the entry out since it may hold credentials.
func (c Config) ProxyURLs() ([]*url.URL, error) {
	var out []*url.URL
	for i, raw := range c.Proxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.EqualFold(raw, directProxy) {
			out = append(out, nil)
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, &entity.ConfigurationError{Field: "catalog proxies", Message: fmt.Sprintf("entry %d is not a URL", i+1)}
		}
		switch u.Scheme {
		case "http", "https", "socks5":
		default:
			return nil, &entity.ConfigurationError{
				Field:   "catalog proxies",
				Message: fmt.Sprintf("entry %d must use http, https or socks5", i+1),
			}
		}
		out = append(out, u)
	}
	return out, nil
}

// APIURL is the absolute goods list endpoint.
func (c Config) APIURL() string {
	path := c.APIPath
	if path == "" {
		path = defaultAPIPath
	}
	return strings.TrimRight(c.BaseURL, "/") + path
}

// ParseCookies splits a cookie header value into cookies. Malformed pairs are skipped.
func ParseCookies(header string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: strings.TrimSpace(value)})
	}
	return cookies
}
