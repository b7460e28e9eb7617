// Package proxy rotates outbound HTTP proxies and benches the ones that keep
// failing.
package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrUnknown is returned when marking a proxy that is not in the pool.
var ErrUnknown = errors.New("proxy: not in pool")

type endpoint struct {
	url       *url.URL
	failures  int
	successes int
	benched   time.Time // zero while usable
}

// Pool hands out proxies round-robin. A proxy that fails MaxFailures times in
// a row is skipped until its cooldown has passed. Safe for concurrent use.
type Pool struct {
	maxFailures int
	cooldown    time.Duration

	mu   sync.Mutex
	eps  []*endpoint
	next int
}

// Config tunes failure handling. Zero values pick 3 failures and 5 minutes.
type Config struct {
	MaxFailures int
	Cooldown    time.Duration
}

// NewPool creates an empty pool.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{maxFailures: cfg.MaxFailures, cooldown: cfg.Cooldown}
}

// LoadFile adds one proxy per line of path. Blank lines and # comments are
// skipped.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxies file: %w", err)
	}
	defer f.Close()

	var raws []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read proxies file: %w", err)
	}
	return p.Add(raws...)
}

// Add parses and appends proxies. host:port without a scheme means http.
// Nothing is added if any entry is invalid.
func (p *Pool) Add(raws ...string) error {
	parsed := make([]*endpoint, 0, len(raws))
	for _, raw := range raws {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		if u.Host == "" {
			return fmt.Errorf("parse proxy %q: missing host", raw)
		}
		parsed = append(parsed, &endpoint{url: u})
	}

	p.mu.Lock()
	p.eps = append(p.eps, parsed...)
	p.mu.Unlock()
	return nil
}

// Len is the number of proxies, benched ones included.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.eps)
}

// Next returns the next usable proxy, or nil when the pool is empty or every
// proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for range p.eps {
		ep := p.eps[p.next]
		p.next = (p.next + 1) % len(p.eps)

		if !ep.benched.IsZero() {
			if now.Before(ep.benched.Add(p.cooldown)) {
				continue
			}
			ep.benched = time.Time{}
			ep.failures = 0
		}
		return ep.url
	}
	return nil
}

// MarkSuccess records a good request through u and forgives one failure.
func (p *Pool) MarkSuccess(u *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ep := p.find(u)
	if ep == nil {
		return ErrUnknown
	}
	ep.successes++
	if ep.failures > 0 {
		ep.failures--
	}
	return nil
}

// MarkFailure records a bad request through u, benching it once it reaches
// the failure limit.
func (p *Pool) MarkFailure(u *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ep := p.find(u)
	if ep == nil {
		return ErrUnknown
	}
	ep.failures++
	if ep.failures >= p.maxFailures && ep.benched.IsZero() {
		ep.benched = time.Now()
	}
	return nil
}

// find must be called with mu held.
func (p *Pool) find(u *url.URL) *endpoint {
	if u == nil {
		return nil
	}
	key := u.String()
	for _, ep := range p.eps {
		if ep.url.String() == key {
			return ep
		}
	}
	return nil
}
