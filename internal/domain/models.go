package domain

import (
	"strconv"
	"time"
)

// URLTask represents a single product URL to be processed by a worker.
type URLTask struct {
	URL        string
	CrawlDelay time.Duration
}

// Variant is one purchasable configuration of a product. Every variant
// becomes its own output row.
type Variant struct {
	ID         string
	Title      string
	SKU        string
	GTIN       string
	Price      string
	URL        string
	Image      string
	GroupAttr1 string
	GroupAttr2 string
	Status     string
}

// Product holds the fields extracted from a product page. Single-variant
// sites synthesize one default variant.
type Product struct {
	URL         string
	ID          string
	Category    string
	CategoryURL string
	Brand       string
	Name        string
	SKU         string
	MPN         string
	GTIN        string
	Price       string
	MainImage   string
	Quantity    int
	Status      string
	Variants    []Variant
}

// Record is one flat output row in the feed schema.
type Record struct {
	ProductURL  string
	ProductID   string
	VariantID   string
	Category    string
	CategoryURL string
	Brand       string
	Name        string
	SKU         string
	MPN         string
	GTIN        string
	Price       string
	MainImage   string
	Quantity    int
	GroupAttr1  string
	GroupAttr2  string
	Status      string
	DateScraped string
}

// Header returns the CSV header in feed column order.
func Header() []string {
	return []string{
		"Ref Product URL",
		"Ref Product ID",
		"Ref Variant ID",
		"Ref Category",
		"Ref Category URL",
		"Ref Brand Name",
		"Ref Product Name",
		"Ref SKU",
		"Ref MPN",
		"Ref GTIN",
		"Ref Price",
		"Ref Main Image",
		"Ref Quantity",
		"Ref Group Attr 1",
		"Ref Group Attr 2",
		"Ref Status",
		"Date Scraped",
	}
}

// Fields returns the record values in feed column order.
func (r Record) Fields() []string {
	return []string{
		r.ProductURL,
		r.ProductID,
		r.VariantID,
		r.Category,
		r.CategoryURL,
		r.Brand,
		r.Name,
		r.SKU,
		r.MPN,
		r.GTIN,
		r.Price,
		r.MainImage,
		strconv.Itoa(r.Quantity),
		r.GroupAttr1,
		r.GroupAttr2,
		r.Status,
		r.DateScraped,
	}
}

// Records expands a product into one record per variant, stamped with the
// run's scrape date. Products without explicit variants produce a single
// row whose variant ID falls back to the product ID.
func (p *Product) Records(dateScraped string) []Record {
	base := Record{
		ProductURL:  p.URL,
		ProductID:   p.ID,
		VariantID:   p.ID,
		Category:    p.Category,
		CategoryURL: p.CategoryURL,
		Brand:       p.Brand,
		Name:        p.Name,
		SKU:         p.SKU,
		MPN:         p.MPN,
		GTIN:        p.GTIN,
		Price:       p.Price,
		MainImage:   p.MainImage,
		Quantity:    p.Quantity,
		Status:      p.Status,
		DateScraped: dateScraped,
	}

	if len(p.Variants) == 0 {
		return []Record{base}
	}

	recs := make([]Record, 0, len(p.Variants))
	for _, v := range p.Variants {
		rec := base
		if v.ID != "" {
			rec.VariantID = v.ID
		}
		if v.URL != "" {
			rec.ProductURL = v.URL
		}
		if v.Title != "" && v.Title != "Default" {
			rec.Name = p.Name + " - " + v.Title
		}
		if v.SKU != "" {
			rec.SKU = v.SKU
		}
		if v.GTIN != "" {
			rec.GTIN = v.GTIN
		}
		if v.Price != "" {
			rec.Price = v.Price
		}
		if v.Image != "" {
			rec.MainImage = v.Image
		}
		if v.Status != "" {
			rec.Status = v.Status
		}
		rec.GroupAttr1 = v.GroupAttr1
		rec.GroupAttr2 = v.GroupAttr2
		recs = append(recs, rec)
	}
	return recs
}
