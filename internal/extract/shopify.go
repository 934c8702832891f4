package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/retail-scraper/internal/domain"
	"github.com/user/retail-scraper/internal/fetch"
)

// Shopify extracts products through the storefront JSON endpoint: every
// product page also serves {url}.js with the full variant list, so no HTML
// parsing is needed.
type Shopify struct {
	baseURL string
}

func NewShopify(baseURL string) *Shopify {
	return &Shopify{baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Shopify) Name() string { return "shopify" }

func (s *Shopify) IsProductURL(u string) bool {
	return strings.Contains(u, "/products/")
}

type shopifyProduct struct {
	ID            json.Number `json:"id"`
	Title         string      `json:"title"`
	Vendor        string      `json:"vendor"`
	Type          string      `json:"type"`
	FeaturedImage string      `json:"featured_image"`
	Variants      []struct {
		ID            json.Number `json:"id"`
		Title         string      `json:"title"`
		SKU           string      `json:"sku"`
		Barcode       string      `json:"barcode"`
		Option1       string      `json:"option1"`
		Option2       string      `json:"option2"`
		Price         json.Number `json:"price"`
		Available     bool        `json:"available"`
		FeaturedImage *struct {
			Src string `json:"src"`
		} `json:"featured_image"`
	} `json:"variants"`
}

func (s *Shopify) Process(ctx context.Context, f *fetch.Fetcher, url string, hint time.Duration) (*domain.Product, error) {
	var sp shopifyProduct
	if err := f.GetJSON(ctx, strings.TrimRight(url, "/")+".js", hint, &sp); err != nil {
		return nil, err
	}
	return s.Build(url, &sp), nil
}

// Build maps the storefront JSON onto the feed schema, one variant row per
// variants[] entry. Returns nil when the payload has no ID or no variants.
func (s *Shopify) Build(pageURL string, sp *shopifyProduct) *domain.Product {
	if sp.ID.String() == "" || len(sp.Variants) == 0 {
		return nil
	}

	prod := &domain.Product{
		URL:       pageURL,
		ID:        sp.ID.String(),
		Name:      strings.TrimSpace(sp.Title),
		Brand:     sp.Vendor,
		Category:  sp.Type,
		MainImage: s.normalizeImage(sp.FeaturedImage),
		Quantity:  1,
	}

	for _, v := range sp.Variants {
		variant := domain.Variant{
			ID:         v.ID.String(),
			Title:      strings.TrimSpace(v.Title),
			SKU:        strings.TrimSpace(v.SKU),
			GTIN:       strings.TrimSpace(v.Barcode),
			Price:      shopifyPrice(v.Price),
			URL:        fmt.Sprintf("%s?variant=%s", pageURL, v.ID.String()),
			GroupAttr1: v.Option1,
			GroupAttr2: v.Option2,
			Status:     "OUT_OF_STOCK",
		}
		if v.Available {
			variant.Status = "SELLABLE"
		}
		if v.FeaturedImage != nil && v.FeaturedImage.Src != "" {
			variant.Image = s.normalizeImage(v.FeaturedImage.Src)
		}
		prod.Variants = append(prod.Variants, variant)
	}

	return prod
}

// shopifyPrice renders the price in dollars; the .js endpoint reports cents
// as an integer but some themes serve a decimal string.
func shopifyPrice(n json.Number) string {
	raw := n.String()
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, ".") {
		return raw
	}
	if cents, err := n.Int64(); err == nil {
		return fmt.Sprintf("%d.%02d", cents/100, cents%100)
	}
	return raw
}

func (s *Shopify) normalizeImage(src string) string {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return ""
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/"):
		return s.baseURL + src
	default:
		return src
	}
}
