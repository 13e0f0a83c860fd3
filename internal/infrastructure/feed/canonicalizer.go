package feed

import (
	"encoding/json"

	"github.com/feedsync/backend/internal/domain/catalog"
	"github.com/feedsync/backend/internal/domain/supplier"
)

var emptyPayload = []byte("{}")

// Canonicalize maps intermediate records onto canonical products. Records
// without a SKU cannot be keyed and are dropped; the count is returned.
// Categories are carried as-is (or the fallback when empty); taxonomy
// mapping is a separate step.
func Canonicalize(sup supplier.Supplier, records []Record) ([]catalog.Product, int) {
	supplierName := sup.Name
	if supplierName == "" {
		supplierName = sup.ID
	}

	products := make([]catalog.Product, 0, len(records))
	dropped := 0

	for _, r := range records {
		r = r.trimmed()
		sku := catalog.Truncate(r.SKU, catalog.MaxSKULength)
		if sku == "" {
			dropped++
			continue
		}

		name := r.Name
		if name == "" {
			name = sku
		}
		brand := r.Brand
		if brand == "" {
			brand = catalog.Truncate(supplierName, catalog.MaxBrandLength)
		}
		category := r.Category
		if category == "" {
			category = catalog.FallbackCategory
		}

		products = append(products, catalog.Product{
			MasterSKU:    catalog.MasterSKU(sup.ID, sku),
			SupplierSKU:  sku,
			SupplierName: supplierName,
			Name:         name,
			Description:  r.Description,
			Brand:        brand,
			PriceExVAT:   catalog.NormalizePrice(r.Price),
			QtyOnHand:    catalog.NormalizeQuantity(r.Qty),
			ImageURL:     r.ImageURL,
			Category:     category,
			RawPayload:   rawPayload(r.Raw),
		})
	}

	return products, dropped
}

// NormalizeCategories maps every product category onto the taxonomy
func NormalizeCategories(products []catalog.Product) {
	for i := range products {
		products[i].Category = catalog.NormalizeCategory(products[i].Category)
	}
}

func rawPayload(raw map[string]any) []byte {
	if len(raw) == 0 {
		return emptyPayload
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return emptyPayload
	}
	return b
}
