package extract

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/retail-scraper/internal/domain"
	"github.com/user/retail-scraper/internal/fetch"
)

// Magento extracts products from Magento storefronts that publish analytics
// state through dataLayer.push(...). Real PDPs carry ecommerce.isPDP == 1;
// everything else is skipped.
type Magento struct{}

func NewMagento() *Magento { return &Magento{} }

func (m *Magento) Name() string { return "magento" }

func (m *Magento) IsProductURL(u string) bool {
	return strings.Contains(u, ".html")
}

var (
	dataLayerRe     = regexp.MustCompile(`(?s)dataLayer\.push\s*\(\s*(\{.*?\})\s*\)`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// magentoCategoryFields are probed in order when the spec table carries no
// product_type.
var magentoCategoryFields = []string{
	"item_category", "item_category2", "item_category3",
	"item_category4", "item_category5", "item_category6",
	"item_category7", "item_category8", "item_category9",
}

type magentoLayer struct {
	ProdID  []json.Number `json:"ecomm_prodid"`
	ProdSKU string        `json:"ecomm_prodsku"`
	Product struct {
		Name string `json:"name"`
		SKU  string `json:"sku"`
	} `json:"product"`
	Ecommerce struct {
		IsPDP        json.Number                  `json:"isPDP"`
		Value        json.Number                  `json:"value"`
		Availability string                       `json:"magentoProductAvailability"`
		Items        []map[string]json.RawMessage `json:"items"`
	} `json:"ecommerce"`
}

func (m *Magento) Process(ctx context.Context, f *fetch.Fetcher, url string, hint time.Duration) (*domain.Product, error) {
	body, err := f.Get(ctx, url, hint)
	if err != nil {
		return nil, err
	}
	return m.Parse(NewPage(url, body)), nil
}

// Parse mines the first parseable dataLayer.push payload and the spec table.
// Returns nil for non-PDP pages and pages without a product ID.
func (m *Magento) Parse(p *Page) *domain.Product {
	layer := m.extractLayer(p.Body)
	if layer == nil {
		return nil
	}
	if pdp, err := layer.Ecommerce.IsPDP.Int64(); err != nil || pdp == 0 {
		return nil
	}
	if len(layer.ProdID) == 0 {
		return nil
	}

	prod := &domain.Product{
		URL:      p.URL,
		ID:       layer.ProdID[0].String(),
		Name:     strings.TrimSpace(layer.Product.Name),
		SKU:      layer.ProdSKU,
		Quantity: 1,
		Status:   "OUT_OF_STOCK",
	}
	if prod.SKU == "" {
		prod.SKU = layer.Product.SKU
	}
	prod.MPN = prod.SKU
	if layer.Ecommerce.Availability == "InStock" {
		prod.Status = "SELLABLE"
	}

	var item map[string]json.RawMessage
	if len(layer.Ecommerce.Items) > 0 {
		item = layer.Ecommerce.Items[0]
	}
	if prod.Name == "" {
		prod.Name = itemString(item, "item_name")
	}
	prod.Brand = itemString(item, "item_brand")
	prod.Price = itemString(item, "price")
	if prod.Price == "" {
		prod.Price = layer.Ecommerce.Value.String()
		if prod.Price == "0" {
			prod.Price = ""
		}
	}
	if q := itemString(item, "quantity"); q != "" {
		var n int
		if err := json.Unmarshal([]byte(q), &n); err == nil && n > 0 {
			prod.Quantity = n
		}
	}

	specs := m.specTable(p)
	if mpn := specs["item_number"]; mpn != "" {
		prod.MPN = mpn
	}
	prod.Category = specs["product_type"]
	if prod.Category == "" {
		var cats []string
		for _, field := range magentoCategoryFields {
			if v := itemString(item, field); v != "" {
				cats = append(cats, v)
			}
		}
		prod.Category = strings.Join(cats, " | ")
	}

	return prod
}

func (m *Magento) extractLayer(body string) *magentoLayer {
	for _, match := range dataLayerRe.FindAllStringSubmatch(body, -1) {
		raw := match[1]
		var layer magentoLayer
		if err := json.Unmarshal([]byte(raw), &layer); err != nil {
			// Inline JS objects often carry trailing commas.
			raw = trailingCommaRe.ReplaceAllString(raw, "$1")
			if err := json.Unmarshal([]byte(raw), &layer); err != nil {
				continue
			}
		}
		if layer.Ecommerce.IsPDP.String() != "" || len(layer.ProdID) > 0 {
			return &layer
		}
	}
	return nil
}

var specKeyRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// specTable reads the attribute table into normalized snake_case keys.
func (m *Magento) specTable(p *Page) map[string]string {
	specs := map[string]string{}
	doc := p.Doc()
	if doc == nil {
		return specs
	}
	doc.Find("table#product-attribute-specs-table tr, table.additional-attributes tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find("th").First().Text())
		value := strings.TrimSpace(row.Find("td").First().Text())
		if label == "" || value == "" {
			return
		}
		key := strings.Trim(specKeyRe.ReplaceAllString(strings.ToLower(label), "_"), "_")
		specs[key] = value
	})
	return specs
}

func itemString(item map[string]json.RawMessage, key string) string {
	raw, ok := item[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
