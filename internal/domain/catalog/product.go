package catalog

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/feedsync/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Field limits enforced on every canonical product
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 500
	MaxCategoryLength    = 100
	MaxBrandLength       = 100
	MaxSKULength         = 100

	// PriceScale is the number of decimal places stored for prices
	PriceScale = 2
)

// MaxPrice is the largest value a numeric(10,2) column holds
var MaxPrice = decimal.RequireFromString("99999999.99")

// Product is the canonical product record every supplier feed is reduced to.
// (SupplierName, SupplierSKU) identifies a product across runs.
type Product struct {
	MasterSKU    string
	SupplierSKU  string
	SupplierName string
	Name         string
	Description  string
	Brand        string
	PriceExVAT   decimal.Decimal
	QtyOnHand    int
	ImageURL     string
	Category     string
	RawPayload   []byte
}

// Key returns the upsert conflict key of the product
func (p *Product) Key() string {
	return p.SupplierName + "\x00" + p.SupplierSKU
}

// Validate checks the invariants required before persisting
func (p *Product) Validate() error {
	if strings.TrimSpace(p.SupplierSKU) == "" {
		return shared.NewDomainError("INVALID_PRODUCT", "supplier_sku is required")
	}
	if strings.TrimSpace(p.SupplierName) == "" {
		return shared.NewDomainError("INVALID_PRODUCT", "supplier_name is required")
	}
	if p.Category == "" {
		return shared.NewDomainError("INVALID_PRODUCT", "category is required")
	}
	if p.PriceExVAT.IsNegative() {
		return shared.NewDomainError("INVALID_PRODUCT", "price_ex_vat cannot be negative")
	}
	if p.QtyOnHand < 0 {
		return shared.NewDomainError("INVALID_PRODUCT", "qty_on_hand cannot be negative")
	}
	return nil
}

// MasterSKU builds the cross-supplier identifier
func MasterSKU(supplierID, supplierSKU string) string {
	return supplierID + "-" + supplierSKU
}

// Truncate cuts s to at most max runes
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// NormalizePrice clamps a price into the storable non-negative range
func NormalizePrice(price decimal.Decimal) decimal.Decimal {
	if price.IsNegative() {
		return decimal.Zero
	}
	price = price.Round(PriceScale)
	if price.GreaterThan(MaxPrice) {
		return decimal.Zero
	}
	return price
}

// NormalizeQuantity clamps stock to zero or more
func NormalizeQuantity(qty int) int {
	if qty < 0 {
		return 0
	}
	return qty
}

// ProductWriter persists canonical products for one supplier batch
type ProductWriter interface {
	// UpsertBatch inserts or updates all products atomically and returns the
	// number of rows written.
	UpsertBatch(ctx context.Context, products []Product) (int, error)
}
