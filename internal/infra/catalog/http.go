package catalog

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/resilience/circuitbreaker"
	"shein-verse-bot/internal/resilience/retry"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 13; SM-S901B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
}

// mobileUserAgent is pinned for the mobile storefront.
const mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"

// NewHTTPClient returns the client shared by all strategies. Requests rotate
// round-robin through proxies, where a nil entry connects directly. Without
// proxies the HTTP_PROXY environment variables apply.
func NewHTTPClient(timeout time.Duration, proxies ...*url.URL) *http.Client {
	proxy := http.ProxyFromEnvironment
	if len(proxies) > 0 {
		proxy = (&proxyRotation{proxies: proxies}).next
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               proxy,
			DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
}

// clientFor builds the client for cfg. Bad proxy entries are reported by
// Config.Validate; here they fall back to the environment.
func clientFor(cfg Config) *http.Client {
	proxies, err := cfg.ProxyURLs()
	if err != nil {
		slog.Warn("catalog proxies ignored", slog.Any("error", err))
		proxies = nil
	}
	return NewHTTPClient(cfg.RequestTimeout, proxies...)
}

type proxyRotation struct {
	proxies []*url.URL
	n       atomic.Uint64
}

func (p *proxyRotation) next(*http.Request) (*url.URL, error) {
	i := p.n.Add(1) - 1
	return p.proxies[i%uint64(len(p.proxies))], nil
}

// requester issues browser-like requests with the configured session cookies.
type requester struct {
	client  *http.Client
	cfg     Config
	cookies []*http.Cookie
}

func newRequester(client *http.Client, cfg Config) *requester {
	if client == nil {
		client = clientFor(cfg)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	return &requester{client: client, cfg: cfg, cookies: ParseCookies(cfg.SessionCookies)}
}

func (r *requester) userAgent() string {
	if r.cfg.UserAgent != "" {
		return r.cfg.UserAgent
	}
	// #nosec G404 -- user agent choice needs no cryptographic randomness.
	return userAgents[rand.Intn(len(userAgents))]
}

// do sends req and returns the capped body of a 200 response.
// Non-200 statuses come back as *entity.FetchError.
func (r *requester) do(req *http.Request, accept string) ([]byte, error) {
	req.Header.Set("User-Agent", r.userAgent())
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Referer", r.cfg.CollectionURL())
	for _, c := range r.cookies {
		req.AddCookie(c)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden:
		return nil, &entity.FetchError{Reason: entity.FetchReasonBlocked, Err: errors.New(resp.Status)}
	case resp.StatusCode == http.StatusTooManyRequests:
		// Not retried inside the cycle; the scheduler backs off instead.
		return nil, &entity.FetchError{Reason: entity.FetchReasonRateLimited, Err: errors.New(resp.Status)}
	default:
		return nil, &entity.FetchError{
			Reason: entity.FetchReasonStatus,
			Err:    &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status},
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxBodySize+1))
	if err != nil {
		return nil, classifyTransport(err)
	}
	if int64(len(body)) > r.cfg.MaxBodySize {
		return nil, &entity.FetchError{
			Reason: entity.FetchReasonDecode,
			Err:    fmt.Errorf("response exceeds %d bytes", r.cfg.MaxBodySize),
		}
	}
	if len(body) == 0 {
		return nil, &entity.FetchError{Reason: entity.FetchReasonEmpty, Err: errors.New("empty response body")}
	}
	return body, nil
}

func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &entity.FetchError{Reason: entity.FetchReasonTimeout, Err: err}
	}
	return &entity.FetchError{Reason: entity.FetchReasonTransport, Err: err}
}

// guarded runs one strategy attempt through retry and its circuit breaker.
func guarded(ctx context.Context, cb *circuitbreaker.CircuitBreaker, cfg retry.Config, fn func() ([]entity.RawRecord, error)) ([]entity.RawRecord, error) {
	var records []entity.RawRecord

	err := retry.WithBackoff(ctx, cfg, func() error {
		result, err := cb.Execute(func() (interface{}, error) {
			return fn()
		})
		if err != nil {
			if circuitbreaker.IsOpenError(err) {
				slog.Warn("catalog circuit breaker open, request rejected",
					slog.String("circuit", cb.Name()),
					slog.String("state", cb.State().String()))
				return retry.Permanent(&entity.FetchError{Reason: entity.FetchReasonCircuitOpen, Err: err})
			}
			return err
		}
		records = result.([]entity.RawRecord)
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, err
	}
	return records, nil
}
