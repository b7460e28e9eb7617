package scraper

import (
	"testing"

	"golang.org/x/text/encoding/charmap"
)

const catalogPage = `<html><body>
<section class="catalog">
  <article class="l-product l-product__horizontal">
    <span itemprop="name"> Гирлянда LED 10м </span>
    <div class="l-product__price-base">1` + "\u00a0" + `299 ₽</div>
  </article>
  <article class="l-product l-product__horizontal">
    <div class="l-product__price-base">450 ₽</div>
  </article>
  <article class="l-product l-product__horizontal">
    <span itemprop="name">Ель искусственная</span>
  </article>
</section>
<a id="navigation_2_next_page" href=" /catalog/elki/?PAGEN_2=2 ">next</a>
</body></html>`

func TestExtract_Entries(t *testing.T) {
	e, err := NewExtractor(Selectors{})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	listing, err := e.Extract([]byte(catalogPage), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(listing.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(listing.Records))
	}

	tests := []struct {
		name, price string
	}{
		{"Гирлянда LED 10м", "1 299 ₽"},
		{NameNotSpecified, "450 ₽"},
		{"Ель искусственная", PriceNotSpecified},
	}
	for i, tt := range tests {
		got := listing.Records[i]
		if got.Name != tt.name {
			t.Errorf("record %d: expected name %q, got %q", i, tt.name, got.Name)
		}
		if got.Price != tt.price {
			t.Errorf("record %d: expected price %q, got %q", i, tt.price, got.Price)
		}
	}

	if listing.Next != "/catalog/elki/?PAGEN_2=2" {
		t.Errorf("unexpected next link %q", listing.Next)
	}
}

func TestExtract_NoEntries(t *testing.T) {
	e, _ := NewExtractor(Selectors{})

	listing, err := e.Extract([]byte(`<html><body><p>Nothing here</p></body></html>`), "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if listing.Records == nil || len(listing.Records) != 0 {
		t.Errorf("expected empty non-nil records, got %#v", listing.Records)
	}
	if listing.Next != "" {
		t.Errorf("expected no next link, got %q", listing.Next)
	}
}

func TestExtract_NextWithoutHref(t *testing.T) {
	e, _ := NewExtractor(Selectors{})

	listing, err := e.Extract([]byte(`<a id="navigation_2_next_page">next</a>`), "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if listing.Next != "" {
		t.Errorf("expected no next link, got %q", listing.Next)
	}
}

func TestExtract_Windows1251(t *testing.T) {
	page := `<html><head><meta charset="windows-1251"></head><body>
<article class="l-product__horizontal"><span itemprop="name">Гирлянда</span>` +
		`<div class="l-product__price-base">99 руб</div></article></body></html>`

	encoded, err := charmap.Windows1251.NewEncoder().String(page)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	e, _ := NewExtractor(Selectors{})
	listing, err := e.Extract([]byte(encoded), "text/html; charset=windows-1251")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(listing.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(listing.Records))
	}
	if listing.Records[0].Name != "Гирлянда" {
		t.Errorf("expected decoded name, got %q", listing.Records[0].Name)
	}
	if listing.Records[0].Price != "99 руб" {
		t.Errorf("expected decoded price, got %q", listing.Records[0].Price)
	}
}

func TestExtract_CustomSelectors(t *testing.T) {
	e, err := NewExtractor(Selectors{
		Product: "li.item",
		Name:    "h3",
		Price:   ".cost",
		Next:    "a.next",
	})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	page := `<ul><li class="item"><h3>A</h3><span class="cost">1</span></li>` +
		`<li class="item"><h3>B</h3><span class="cost">2</span></li></ul><a class="next" href="?p=2">›</a>`
	listing, err := e.Extract([]byte(page), "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(listing.Records) != 2 || listing.Records[1].Name != "B" || listing.Records[1].Price != "2" {
		t.Errorf("unexpected records %#v", listing.Records)
	}
	if listing.Next != "?p=2" {
		t.Errorf("unexpected next %q", listing.Next)
	}
}

func TestNewExtractor_InvalidSelector(t *testing.T) {
	if _, err := NewExtractor(Selectors{Product: "article[["}); err == nil {
		t.Errorf("expected error for invalid selector")
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := map[string]string{
		"  1\u00a0299 ₽ ":      "1 299 ₽",
		"\n\t450 ₽\n":          "450 ₽",
		"12\u00a0345\u00a0678": "12 345 678",
		"":                     "",
	}
	for in, want := range tests {
		if got := normalizePrice(in); got != want {
			t.Errorf("normalizePrice(%q) = %q, want %q", in, got, want)
		}
	}
}
