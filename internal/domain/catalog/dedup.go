package catalog

// Deduplicate collapses products sharing a supplier SKU. The first occurrence
// wins and later ones are dropped. The returned count is the number dropped.
func Deduplicate(products []Product) ([]Product, int) {
	seen := make(map[string]struct{}, len(products))
	kept := make([]Product, 0, len(products))

	for _, p := range products {
		if _, ok := seen[p.SupplierSKU]; ok {
			continue
		}
		seen[p.SupplierSKU] = struct{}{}
		kept = append(kept, p)
	}

	return kept, len(products) - len(kept)
}
