package scraper

import (
	"errors"
	"fmt"
)

// Reasons a traversal can stop before the catalog's last page.
var (
	// ErrTransport covers timeouts, DNS failures, resets and unreadable bodies.
	ErrTransport = errors.New("transport failure")
	// ErrParse means a page could not be read as markup.
	ErrParse = errors.New("parse failure")
	// ErrStatus is wrapped by StatusError.
	ErrStatus = errors.New("unexpected status")
	// ErrPageLimit means MaxPages pages were fetched and a next link remained.
	ErrPageLimit = errors.New("page limit reached")
	// ErrRevisit means a next link pointed at an already fetched page.
	ErrRevisit = errors.New("next page already visited")
	// ErrOffSite means a next link left the catalog's origin.
	ErrOffSite = errors.New("next page outside site")
	// ErrDisallowed means robots.txt forbids the page.
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// ErrProxyProfile is returned by NewFetcher for proxies with a browser fingerprint.
var ErrProxyProfile = errors.New("proxies unsupported for fingerprint")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Code   int
	Source string // bot protection that answered, if recognised
}

func (e *StatusError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("status %d from %s (blocked by %s)", e.Code, e.URL, e.Source)
	}
	return fmt.Sprintf("status %d from %s", e.Code, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrStatus }
