package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/catalogsync/internal/storage"
	"github.com/FranksOps/catalogsync/pkg/ratelimit"
	"github.com/FranksOps/catalogsync/pkg/useragent"
)

// PaginatorConfig provides parameters for walking a paginated catalog.
type PaginatorConfig struct {
	// BaseURL is the site origin; relative next-page links resolve against it
	// and absolute ones must stay on its host.
	BaseURL string
	// MaxPages bounds one traversal (0 = default 200).
	MaxPages int
	// PageDelay is the minimum gap between page requests (0 = no delay).
	PageDelay time.Duration
	// Jitter adds up to this fraction of PageDelay at random (0.0 to 1.0).
	Jitter float64
	// UserAgents supplies the User-Agent; one is picked per traversal.
	UserAgents *useragent.Pool
	// RespectRobots consults robots.txt before each page.
	RespectRobots bool
}

// Traversal is the outcome of one walk over the catalog pages.
type Traversal struct {
	// Records in page order, then document order. Never nil.
	Records []storage.Record
	// Pages is the number of pages successfully extracted.
	Pages int
	// Err is why the walk stopped early; nil when the last page had no next link.
	// Records gathered before the failure are kept.
	Err error
}

// Paginator follows next-page links from a start URL, extracting each page.
type Paginator struct {
	cfg       PaginatorConfig
	base      *url.URL
	fetcher   *Fetcher
	extractor *Extractor
	logger    *slog.Logger
	auditor   *RobotsTxtAuditor
	limiter   *ratelimit.Limiter
}

// NewPaginator creates a Paginator.
func NewPaginator(cfg PaginatorConfig, fetcher *Fetcher, extractor *Extractor, logger *slog.Logger) (*Paginator, error) {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 200
	}
	if cfg.UserAgents == nil {
		cfg.UserAgents = useragent.NewPool(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	var auditor *RobotsTxtAuditor
	if cfg.RespectRobots {
		auditor = NewRobotsTxtAuditor(fetcher, logger)
	}

	return &Paginator{
		cfg:       cfg,
		base:      base,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger,
		auditor:   auditor,
		limiter:   ratelimit.NewLimiter(cfg.PageDelay, cfg.Jitter),
	}, nil
}

// Collect walks the catalog from startURL until a page has no next link or
// something goes wrong. It never fails as a whole: failures end the walk and
// are reported in Traversal.Err alongside the records gathered so far.
func (p *Paginator) Collect(ctx context.Context, startURL string) Traversal {
	t := Traversal{Records: []storage.Record{}}

	current, err := p.resolve(startURL)
	if err != nil {
		t.Err = err
		return t
	}

	userAgent := p.cfg.UserAgents.Random()
	visited := make(map[string]struct{})
	p.limiter.Reset()

	for current != "" {
		if t.Pages >= p.cfg.MaxPages {
			t.Err = fmt.Errorf("%w: stopped after %d pages", ErrPageLimit, t.Pages)
			break
		}
		if _, seen := visited[current]; seen {
			t.Err = fmt.Errorf("%w: %s", ErrRevisit, current)
			break
		}
		visited[current] = struct{}{}

		if p.auditor != nil {
			allowed, err := p.auditor.IsAllowed(ctx, current, userAgent)
			if err != nil {
				p.logger.Warn("error checking robots.txt", "url", current, "err", err)
			} else if !allowed {
				t.Err = fmt.Errorf("%w: %s", ErrDisallowed, current)
				break
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			t.Err = err
			break
		}

		p.logger.Info("fetching catalog page", "url", current, "page", t.Pages+1)

		page, err := p.fetcher.Fetch(ctx, current, userAgent)
		if err != nil {
			t.Err = err
			break
		}
		if !page.OK() {
			t.Err = &StatusError{URL: current, Code: page.StatusCode, Source: page.BlockedBy}
			break
		}

		listing, err := p.extractor.Extract(page.Body, page.ContentType)
		if err != nil {
			t.Err = err
			break
		}

		t.Pages++
		t.Records = append(t.Records, listing.Records...)
		p.logger.Debug("extracted page", "url", current, "count", len(listing.Records), "proxy", page.Proxy)

		if listing.Next == "" {
			break
		}
		current, err = p.resolve(listing.Next)
		if err != nil {
			t.Err = err
			break
		}
	}

	if t.Err != nil {
		p.logError(t)
	}
	return t
}

func (p *Paginator) logError(t Traversal) {
	var statusErr *StatusError
	switch {
	case errors.As(t.Err, &statusErr):
		p.logger.Error("catalog page returned error status",
			"url", statusErr.URL, "status", statusErr.Code, "blocked_by", statusErr.Source, "pages", t.Pages)
	case errors.Is(t.Err, ErrPageLimit), errors.Is(t.Err, ErrRevisit), errors.Is(t.Err, ErrOffSite):
		p.logger.Warn("pagination stopped", "err", t.Err, "pages", t.Pages)
	default:
		p.logger.Error("pagination aborted", "err", t.Err, "pages", t.Pages)
	}
}

// resolve turns an href into an absolute URL on the base host, without fragment.
func (p *Paginator) resolve(href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("%w: bad link %q: %v", ErrParse, href, err)
	}

	u := p.base.ResolveReference(ref)
	if !strings.EqualFold(u.Host, p.base.Host) {
		return "", fmt.Errorf("%w: %s", ErrOffSite, u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %s", ErrOffSite, u)
	}

	u.Fragment = ""
	return u.String(), nil
}
