package extract

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/retail-scraper/internal/domain"
	"github.com/user/retail-scraper/internal/fetch"
)

// Cymax extracts products from furniture storefronts whose product pages
// end in a numeric .htm slug. Fields live in a mix of stable markup and
// inline JSON, so every field is a selector chain with regex fallbacks.
type Cymax struct{}

func NewCymax() *Cymax { return &Cymax{} }

func (c *Cymax) Name() string { return "cymax" }

func (c *Cymax) IsProductURL(u string) bool {
	path := u
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		path = u[:i]
	}
	return strings.HasSuffix(path, ".htm")
}

func (c *Cymax) Process(ctx context.Context, f *fetch.Fetcher, url string, hint time.Duration) (*domain.Product, error) {
	body, err := f.Get(ctx, url, hint)
	if err != nil {
		return nil, err
	}
	return c.Parse(NewPage(url, body)), nil
}

// Parse maps a product page into the feed schema. Returns nil when no
// strategy can resolve a product ID.
func (c *Cymax) Parse(p *Page) *domain.Product {
	id := First(p,
		Selector("span.product-id-label"),
		Regex(`"productId":\s*"(\d+)"`),
		Regex(`Item:\s*(\d+)`),
		FromURL(`/(\d+)[-A-Z]*\.htm`),
	)
	if id == "" {
		return nil
	}

	prod := &domain.Product{
		URL: p.URL,
		ID:  id,
		Name: First(p,
			Selector("h1[itemprop=name]"),
			Selector("title"),
		),
		Price: Money(First(p,
			Selector("#product-main-price"),
			SelectorAttr(`meta[property="og:price:amount"]`, "content"),
		)),
		Brand: First(p,
			SelectorAttr("meta[itemprop=brand]", "content"),
			Regex(`"brandName":\s*"([^"]+)"`),
		),
		Quantity: 1,
		Status:   "Unknown",
	}

	if mpn := First(p, Regex(`"manufacturerPartNumbers":\s*\["([^"]+)"\]`)); mpn != "" {
		prod.SKU = mpn
		prod.MPN = mpn
	}

	if doc := p.Doc(); doc != nil {
		var cats []string
		doc.Find(".breadcrumb li a").Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); t != "" && t != "Home" {
				cats = append(cats, t)
			}
		})
		if len(cats) > 0 {
			prod.Category = cats[len(cats)-1]
			lastCrumb := doc.Find(".breadcrumb li a").Last()
			if href, ok := lastCrumb.Attr("href"); ok {
				prod.CategoryURL = AbsURL(p.URL, href)
			}
		}
	}

	if src := First(p, SelectorAttr("img#product-main-image", "src")); src != "" {
		prod.MainImage = AbsURL(p.URL, src)
	}

	if ship := First(p, Selector("#product-shipping-info")); strings.Contains(ship, "Ships") {
		prod.Status = "Available"
	}

	// These pages sell a single configuration; the feed still wants one
	// variant row per product.
	prod.Variants = []domain.Variant{{
		Title:      "Default",
		Price:      prod.Price,
		URL:        p.URL,
		Image:      prod.MainImage,
		GroupAttr1: "default",
		Status:     prod.Status,
	}}

	return prod
}
