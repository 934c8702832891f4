package extract

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/retail-scraper/internal/domain"
	"github.com/user/retail-scraper/internal/fetch"
)

// Profile is a site-specific extractor. Process returns (nil, nil) when the
// content does not represent a sellable product; that URL is skipped, not
// counted as an error.
type Profile interface {
	Name() string
	IsProductURL(u string) bool
	Process(ctx context.Context, f *fetch.Fetcher, url string, hint time.Duration) (*domain.Product, error)
}

// Page wraps fetched content with a lazily parsed DOM. Strategies read from
// it without caring whether the field lives in markup, inline JSON, or the
// URL itself.
type Page struct {
	URL    string
	Body   string
	doc    *goquery.Document
	docErr error
}

func NewPage(pageURL, body string) *Page {
	return &Page{URL: pageURL, Body: body}
}

// Doc parses the body on first use. A parse failure yields nil; selector
// strategies then simply return empty and regex strategies still apply.
func (p *Page) Doc() *goquery.Document {
	if p.doc == nil && p.docErr == nil {
		p.doc, p.docErr = goquery.NewDocumentFromReader(strings.NewReader(p.Body))
	}
	return p.doc
}

// Strategy extracts one field value from a page; empty string means "not
// found, try the next one".
type Strategy func(*Page) string

// First runs strategies in priority order and returns the first non-empty
// result.
func First(p *Page, strategies ...Strategy) string {
	for _, s := range strategies {
		if v := strings.TrimSpace(s(p)); v != "" {
			return v
		}
	}
	return ""
}

// Selector returns the trimmed text of the first node matching a CSS
// selector.
func Selector(sel string) Strategy {
	return func(p *Page) string {
		doc := p.Doc()
		if doc == nil {
			return ""
		}
		return strings.TrimSpace(doc.Find(sel).First().Text())
	}
}

// SelectorAttr returns an attribute of the first node matching a CSS
// selector.
func SelectorAttr(sel, attr string) Strategy {
	return func(p *Page) string {
		doc := p.Doc()
		if doc == nil {
			return ""
		}
		v, _ := doc.Find(sel).First().Attr(attr)
		return strings.TrimSpace(v)
	}
}

// Regex returns the first capture group of a pattern applied to the body.
func Regex(pattern string) Strategy {
	re := regexp.MustCompile(pattern)
	return func(p *Page) string {
		if m := re.FindStringSubmatch(p.Body); m != nil {
			return m[1]
		}
		return ""
	}
}

// FromURL returns the first capture group of a pattern applied to the page
// URL, for fields with no DOM anchor at all.
func FromURL(pattern string) Strategy {
	re := regexp.MustCompile(pattern)
	return func(p *Page) string {
		if m := re.FindStringSubmatch(p.URL); m != nil {
			return m[1]
		}
		return ""
	}
}

var moneyRe = regexp.MustCompile(`\d+(\.\d+)?`)

// Money strips currency formatting and keeps the leading numeric value.
func Money(s string) string {
	clean := strings.NewReplacer("$", "", ",", "").Replace(s)
	return moneyRe.FindString(clean)
}

// AbsURL resolves a possibly relative or protocol-relative src against the
// page URL.
func AbsURL(pageURL, src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
