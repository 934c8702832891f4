package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/user/retail-scraper/internal/domain"
	"github.com/user/retail-scraper/internal/fetch"
)

// GraphQL extracts products from storefronts that serve product data through
// a GraphQL endpoint keyed by the numeric item ID in the PDP URL.
type GraphQL struct {
	endpoint string
}

func NewGraphQL(endpoint string) *GraphQL {
	return &GraphQL{endpoint: endpoint}
}

func (g *GraphQL) Name() string { return "graphql" }

var gqlItemIDRe = regexp.MustCompile(`/(\d+)(?:[/?#]|$)`)

func (g *GraphQL) IsProductURL(u string) bool {
	return gqlItemIDRe.MatchString(u)
}

const productQuery = `
query productClientOnlyProduct($itemId: String!, $storeId: String) {
  product(itemId: $itemId) {
    itemId
    identifiers {
      canonicalUrl
      brandName
      itemId
      modelNumber
      productLabel
      storeSkuNumber
      upcGtin13
      upc
    }
    availabilityType {
      status
      type
      buyable
      discontinued
    }
    media {
      images {
        url
      }
    }
    pricing(storeId: $storeId) {
      value
      original
      unitOfMeasure
    }
    taxonomy {
      breadCrumbs {
        label
        url
      }
    }
  }
}
`

type gqlResponse struct {
	Data struct {
		Product *struct {
			ItemID      string `json:"itemId"`
			Identifiers struct {
				CanonicalURL   string `json:"canonicalUrl"`
				BrandName      string `json:"brandName"`
				ModelNumber    string `json:"modelNumber"`
				ProductLabel   string `json:"productLabel"`
				StoreSKUNumber string `json:"storeSkuNumber"`
				UpcGtin13      string `json:"upcGtin13"`
				Upc            string `json:"upc"`
			} `json:"identifiers"`
			AvailabilityType struct {
				Status  string `json:"status"`
				Buyable bool   `json:"buyable"`
			} `json:"availabilityType"`
			Media struct {
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"media"`
			Pricing struct {
				Value json.Number `json:"value"`
			} `json:"pricing"`
			Taxonomy struct {
				BreadCrumbs []struct {
					Label string `json:"label"`
					URL   string `json:"url"`
				} `json:"breadCrumbs"`
			} `json:"taxonomy"`
		} `json:"product"`
	} `json:"data"`
}

func (g *GraphQL) Process(ctx context.Context, f *fetch.Fetcher, url string, hint time.Duration) (*domain.Product, error) {
	m := gqlItemIDRe.FindStringSubmatch(url)
	if m == nil {
		return nil, nil
	}
	itemID := m[1]

	payload, err := json.Marshal(map[string]any{
		"operationName": "productClientOnlyProduct",
		"query":         productQuery,
		"variables":     map[string]any{"itemId": itemID},
	})
	if err != nil {
		return nil, fmt.Errorf("encode graphql request for %s: %w", url, err)
	}

	body, err := f.Post(ctx, g.endpoint, payload, hint)
	if err != nil {
		return nil, err
	}

	var resp gqlResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("parse graphql response for %s: %w", url, err)
	}
	return g.Build(url, itemID, &resp), nil
}

// Build maps the GraphQL payload onto the feed schema. Returns nil when the
// endpoint knows nothing about the item.
func (g *GraphQL) Build(pageURL, itemID string, resp *gqlResponse) *domain.Product {
	product := resp.Data.Product
	if product == nil {
		return nil
	}

	ids := product.Identifiers
	prod := &domain.Product{
		URL:      pageURL,
		ID:       itemID,
		Brand:    ids.BrandName,
		Name:     ids.ProductLabel,
		SKU:      ids.StoreSKUNumber,
		MPN:      ids.ModelNumber,
		GTIN:     ids.UpcGtin13,
		Price:    product.Pricing.Value.String(),
		Quantity: 1,
		Status:   "OUT_OF_STOCK",
	}
	if prod.GTIN == "" {
		prod.GTIN = ids.Upc
	}
	if len(product.Media.Images) > 0 {
		prod.MainImage = product.Media.Images[0].URL
	}

	for _, crumb := range product.Taxonomy.BreadCrumbs {
		if strings.EqualFold(strings.TrimSpace(crumb.Label), "home") {
			continue
		}
		prod.Category = crumb.Label
		prod.CategoryURL = crumb.URL
	}

	availability := product.AvailabilityType
	if availability.Buyable || strings.Contains(strings.ToLower(availability.Status), "active") {
		prod.Status = "SELLABLE"
	}

	// The variant row carries the store SKU when present.
	variantID := prod.SKU
	if variantID == "" {
		variantID = itemID
	}
	prod.Variants = []domain.Variant{{
		ID:     variantID,
		Title:  "Default",
		SKU:    prod.SKU,
		GTIN:   prod.GTIN,
		Price:  prod.Price,
		URL:    pageURL,
		Image:  prod.MainImage,
		Status: prod.Status,
	}}

	return prod
}
