package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/catalogsync/internal/bypass"
	"github.com/FranksOps/catalogsync/internal/fingerprint"
	"github.com/FranksOps/catalogsync/internal/metrics"
	"github.com/FranksOps/catalogsync/pkg/httpclient"
	"github.com/FranksOps/catalogsync/pkg/proxy"
)

// maxBodySize bounds how much of one catalog page is read.
const maxBodySize = 16 << 20

type proxyKey struct{}

// FetchConfig configures page requests.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	Fingerprint  fingerprint.Profile
	// Proxies, when set, routes each request through the next pool entry.
	// Only the go fingerprint can be proxied: browser profiles dial TLS
	// themselves and net/http would handshake through the proxy with crypto/tls.
	Proxies *proxy.Pool
}

// Page is one fetched catalog page.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
	// BlockedBy names the bot protection that answered a non-2xx request, if recognised.
	BlockedBy string
	// Proxy is the proxy the request went through, credentials redacted.
	Proxy string
}

// OK reports whether the page has a 2xx status.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Fetcher performs single page GETs over a shared client, so the connection
// pool and cookie jar persist across the pages of a cycle.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 5
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}

	var proxyFunc func(*http.Request) (*url.URL, error)
	if cfg.Proxies != nil {
		if cfg.Fingerprint != fingerprint.ProfileGo {
			return nil, fmt.Errorf("%w: proxies need the %q fingerprint, got %q",
				ErrProxyProfile, fingerprint.ProfileGo, cfg.Fingerprint)
		}
		// The proxy travels in the request context so one transport can rotate.
		proxyFunc = func(req *http.Request) (*url.URL, error) {
			if u, ok := req.Context().Value(proxyKey{}).(*url.URL); ok {
				return u, nil
			}
			return http.ProxyFromEnvironment(req)
		}
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: true,
		Headers: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7"},
		},
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// Fetch GETs targetURL with the given User-Agent. Transport failures return
// an error wrapping ErrTransport. Any HTTP response, including non-2xx, is
// returned as a Page with a nil error; the caller decides what a status means.
//
// With a proxy pool, a transport failure or a bot protection answer counts
// against the proxy used.
func (f *Fetcher) Fetch(ctx context.Context, targetURL, userAgent string) (*Page, error) {
	start := time.Now()

	var via *url.URL
	if f.config.Proxies != nil {
		if via = f.config.Proxies.Next(); via != nil {
			ctx = context.WithValue(ctx, proxyKey{}, via)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		f.markProxy(via, false)
		metrics.RecordPage("error", time.Since(start), 0)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		f.markProxy(via, false)
		metrics.RecordPage("error", time.Since(start), len(body))
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	page := &Page{
		URL:         targetURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Duration:    time.Since(start),
	}
	if via != nil {
		page.Proxy = via.Redacted()
	}

	if !page.OK() {
		page.BlockedBy = bypass.Analyze(&bypass.Response{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       body,
		}, bypass.DefaultDetectors())
	}

	f.markProxy(via, page.BlockedBy == "")
	metrics.RecordPage(fmt.Sprint(resp.StatusCode), page.Duration, len(body))
	return page, nil
}

func (f *Fetcher) markProxy(via *url.URL, ok bool) {
	if via == nil {
		return
	}
	if ok {
		_ = f.config.Proxies.MarkSuccess(via)
	} else {
		_ = f.config.Proxies.MarkFailure(via)
	}
}
