package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/FranksOps/catalogsync/internal/storage"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html/charset"
)

// Placeholders used when a product entry lacks a name or price element.
const (
	NameNotSpecified  = "name not specified"
	PriceNotSpecified = "price not specified"
)

// Selectors are the CSS selectors that locate products and pagination on a
// catalog page. Name and Price are matched inside each Product element.
type Selectors struct {
	Product string `mapstructure:"product"`
	Name    string `mapstructure:"name"`
	Price   string `mapstructure:"price"`
	Next    string `mapstructure:"next"`
}

// DefaultSelectors match the maxidom.ru catalog markup.
var DefaultSelectors = Selectors{
	Product: "article.l-product__horizontal",
	Name:    `span[itemprop="name"]`,
	Price:   "div.l-product__price-base",
	Next:    "a#navigation_2_next_page",
}

// Listing is what one catalog page yields.
type Listing struct {
	Records []storage.Record
	// Next is the raw href of the next-page control, empty on the last page.
	Next string
}

// Extractor turns catalog page markup into records.
type Extractor struct {
	sel Selectors
}

// NewExtractor validates sel, filling blank selectors from DefaultSelectors.
func NewExtractor(sel Selectors) (*Extractor, error) {
	if sel.Product == "" {
		sel.Product = DefaultSelectors.Product
	}
	if sel.Name == "" {
		sel.Name = DefaultSelectors.Name
	}
	if sel.Price == "" {
		sel.Price = DefaultSelectors.Price
	}
	if sel.Next == "" {
		sel.Next = DefaultSelectors.Next
	}

	// goquery silently matches nothing on a bad selector, so check up front.
	for _, s := range []string{sel.Product, sel.Name, sel.Price, sel.Next} {
		if _, err := cascadia.Compile(s); err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", s, err)
		}
	}
	return &Extractor{sel: sel}, nil
}

// Extract parses one page. contentType (the response header, may be empty)
// is used to pick the character set. Missing name or price elements yield
// placeholders; only undecodable input returns an error, wrapping ErrParse.
func (e *Extractor) Extract(body []byte, contentType string) (*Listing, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrParse, err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	listing := &Listing{Records: []storage.Record{}}
	doc.Find(e.sel.Product).Each(func(_ int, s *goquery.Selection) {
		rec := storage.Record{Name: NameNotSpecified, Price: PriceNotSpecified}

		if name := s.Find(e.sel.Name).First(); name.Length() > 0 {
			rec.Name = strings.TrimSpace(name.Text())
		}
		if price := s.Find(e.sel.Price).First(); price.Length() > 0 {
			rec.Price = normalizePrice(price.Text())
		}

		listing.Records = append(listing.Records, rec)
	})

	if next := doc.Find(e.sel.Next).First(); next.Length() > 0 {
		if href, ok := next.Attr("href"); ok {
			listing.Next = strings.TrimSpace(href)
		}
	}

	return listing, nil
}

// normalizePrice turns non-breaking spaces (thousands separators on the
// source site) into plain spaces and trims.
func normalizePrice(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}
