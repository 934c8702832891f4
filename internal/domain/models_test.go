package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderMatchesFieldCount(t *testing.T) {
	rec := Record{Quantity: 1}
	require.Len(t, rec.Fields(), len(Header()))
}

func TestRecordsWithoutVariants(t *testing.T) {
	p := &Product{URL: "https://www.example.com/a-1.htm", ID: "1", Name: "Desk"}
	recs := p.Records("2026-08-31")
	require.Len(t, recs, 1)
	require.Equal(t, "1", recs[0].VariantID) // falls back to product ID
	require.Equal(t, "Desk", recs[0].Name)
	require.Equal(t, "2026-08-31", recs[0].DateScraped)
}

func TestRecordsVariantOverrides(t *testing.T) {
	p := &Product{
		URL:   "https://www.example.com/a-1.htm",
		ID:    "1",
		Name:  "Sofa",
		Price: "100.00",
		Variants: []Variant{
			{ID: "1-a", Title: "Beige", Price: "120.00", GroupAttr1: "Beige"},
			{ID: "1-b", Title: "Default"},
		},
	}
	recs := p.Records("2026-08-31")
	require.Len(t, recs, 2)

	require.Equal(t, "1-a", recs[0].VariantID)
	require.Equal(t, "Sofa - Beige", recs[0].Name)
	require.Equal(t, "120.00", recs[0].Price)
	require.Equal(t, "Beige", recs[0].GroupAttr1)

	// A "Default" variant title does not decorate the product name.
	require.Equal(t, "Sofa", recs[1].Name)
	require.Equal(t, "100.00", recs[1].Price)
}
