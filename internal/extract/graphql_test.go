package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const gqlResponseJSON = `{
  "data": {
    "product": {
      "itemId": "312345678",
      "identifiers": {
        "canonicalUrl": "/p/steel-shelving-unit/312345678",
        "brandName": "ToolPro",
        "modelNumber": "TP-SHELF-5",
        "productLabel": "5-Tier Steel Shelving Unit",
        "storeSkuNumber": "1004512345",
        "upcGtin13": "0887480012345",
        "upc": "887480012345"
      },
      "availabilityType": {"status": "Active", "buyable": true},
      "media": {"images": [{"url": "https://images.example.com/shelf.jpg"}]},
      "pricing": {"value": 148.00},
      "taxonomy": {"breadCrumbs": [
        {"label": "Home", "url": "/"},
        {"label": "Storage", "url": "/b/storage"},
        {"label": "Shelving", "url": "/b/storage-shelving"}
      ]}
    }
  }
}`

func TestGraphQLBuild(t *testing.T) {
	var resp gqlResponse
	require.NoError(t, json.Unmarshal([]byte(gqlResponseJSON), &resp))

	g := NewGraphQL("https://www.example.com/graphql")
	prod := g.Build("https://www.example.com/p/steel-shelving-unit/312345678", "312345678", &resp)
	require.NotNil(t, prod)

	require.Equal(t, "312345678", prod.ID)
	require.Equal(t, "ToolPro", prod.Brand)
	require.Equal(t, "5-Tier Steel Shelving Unit", prod.Name)
	require.Equal(t, "1004512345", prod.SKU)
	require.Equal(t, "TP-SHELF-5", prod.MPN)
	require.Equal(t, "0887480012345", prod.GTIN)
	require.Equal(t, "148.00", prod.Price)
	require.Equal(t, "https://images.example.com/shelf.jpg", prod.MainImage)
	require.Equal(t, "Shelving", prod.Category)
	require.Equal(t, "/b/storage-shelving", prod.CategoryURL)
	require.Equal(t, "SELLABLE", prod.Status)
	require.Len(t, prod.Variants, 1)
	require.Equal(t, "1004512345", prod.Variants[0].ID)
}

func TestGraphQLBuildMissingProduct(t *testing.T) {
	var resp gqlResponse
	require.NoError(t, json.Unmarshal([]byte(`{"data": {"product": null}}`), &resp))

	g := NewGraphQL("https://www.example.com/graphql")
	require.Nil(t, g.Build("https://www.example.com/p/x/1", "1", &resp))
}

func TestGraphQLGTINFallsBackToUPC(t *testing.T) {
	var resp gqlResponse
	require.NoError(t, json.Unmarshal([]byte(`{
  "data": {"product": {
    "itemId": "42",
    "identifiers": {"upc": "012345678905"},
    "availabilityType": {"status": "discontinued", "buyable": false}
  }}
}`), &resp))

	g := NewGraphQL("https://www.example.com/graphql")
	prod := g.Build("https://www.example.com/p/x/42", "42", &resp)
	require.NotNil(t, prod)
	require.Equal(t, "012345678905", prod.GTIN)
	require.Equal(t, "OUT_OF_STOCK", prod.Status)
}

func TestGraphQLItemIDFromURL(t *testing.T) {
	g := NewGraphQL("https://www.example.com/graphql")
	require.True(t, g.IsProductURL("https://www.example.com/p/steel-shelf/312345678"))
	require.True(t, g.IsProductURL("https://www.example.com/p/steel-shelf/312345678?store=1"))
	require.False(t, g.IsProductURL("https://www.example.com/b/storage"))
}

func TestForSite(t *testing.T) {
	p, err := ForSite("cymax", "https://www.example.com", "")
	require.NoError(t, err)
	require.Equal(t, "cymax", p.Name())

	p, err = ForSite("shopify", "https://shop.example.com", "")
	require.NoError(t, err)
	require.Equal(t, "shopify", p.Name())

	_, err = ForSite("graphql", "https://www.example.com", "")
	require.Error(t, err)

	_, err = ForSite("unknown-site", "https://www.example.com", "")
	require.Error(t, err)
}
