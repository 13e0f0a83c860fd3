package feed

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/feedsync/backend/internal/domain/catalog"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_EsquireItem(t *testing.T) {
	sup := supplier.Supplier{ID: "esquire", Name: "Esquire", Format: supplier.FormatEsquire}
	records := EsquireParser{}.Parse(parseFixture(t, "esquire.xml"), sup)

	products, dropped := Canonicalize(sup, records)
	require.Zero(t, dropped)
	require.Len(t, products, 3)

	p := products[0]
	assert.Equal(t, "esquire-X", p.MasterSKU)
	assert.Equal(t, "X", p.SupplierSKU)
	assert.Equal(t, "Esquire", p.SupplierName)
	assert.Equal(t, "Widget", p.Name)
	assert.True(t, decimal.RequireFromString("123.45").Equal(p.PriceExVAT))
	assert.Equal(t, 10, p.QtyOnHand)
	assert.Equal(t, "Desktop CPU", p.Category)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(p.RawPayload, &raw))
	assert.Equal(t, "X", raw["StockCode"])

	NormalizeCategories(products)
	assert.Equal(t, "Processors", products[0].Category)
	assert.Equal(t, catalog.FallbackCategory, products[1].Category)
}

func TestCanonicalize_ScoopRouterIsNetworking(t *testing.T) {
	sup := supplier.Supplier{ID: "scoop", Name: "Scoop", Format: supplier.FormatScoop}
	records := ScoopParser{}.Parse(parseFixture(t, "scoop.xml"), sup)

	products, _ := Canonicalize(sup, records)
	NormalizeCategories(products)

	require.NotEmpty(t, products)
	assert.Equal(t, "Wireless Router XYZ", products[0].Name)
	assert.Equal(t, "Networking & Connectivity", products[0].Category)
}

func TestCanonicalize_Fallbacks(t *testing.T) {
	sup := supplier.Supplier{ID: "acme", Name: "Acme Distribution"}
	records := []Record{
		{SKU: "  A1  "},
		{SKU: "", Name: "No key"},
		{SKU: "B2", Name: "Pricey", Price: decimal.RequireFromString("123456789.00"), Qty: -3},
		{SKU: "C3", Name: "Precise", Price: decimal.RequireFromString("10.005")},
	}

	products, dropped := Canonicalize(sup, records)
	assert.Equal(t, 1, dropped)
	require.Len(t, products, 3)

	a := products[0]
	assert.Equal(t, "A1", a.SupplierSKU)
	assert.Equal(t, "acme-A1", a.MasterSKU)
	assert.Equal(t, "A1", a.Name, "name falls back to the SKU")
	assert.Equal(t, "Acme Distribution", a.Brand)
	assert.Equal(t, catalog.FallbackCategory, a.Category)
	assert.Equal(t, "{}", string(a.RawPayload))
	assert.NoError(t, a.Validate())

	assert.True(t, products[1].PriceExVAT.IsZero(), "out of range price is zeroed")
	assert.Equal(t, 0, products[1].QtyOnHand)
	assert.True(t, decimal.RequireFromString("10.01").Equal(products[2].PriceExVAT))
}

func TestCanonicalize_TruncatesLongFields(t *testing.T) {
	sup := supplier.Supplier{ID: "s", Name: "S"}
	records := []Record{{
		SKU:         "K",
		Name:        strings.Repeat("n", 300),
		Description: strings.Repeat("d", 600),
	}}

	products, _ := Canonicalize(sup, records)
	require.Len(t, products, 1)
	assert.Len(t, products[0].Name, catalog.MaxNameLength)
	assert.Len(t, products[0].Description, catalog.MaxDescriptionLength)
}

func TestCanonicalize_SupplierNameFallsBackToID(t *testing.T) {
	products, _ := Canonicalize(supplier.Supplier{ID: "nameless"}, []Record{{SKU: "1"}})
	require.Len(t, products, 1)
	assert.Equal(t, "nameless", products[0].SupplierName)
	assert.Equal(t, "nameless", products[0].Brand)
}
