package feed

import (
	"strings"

	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/shopspring/decimal"
)

// scoopCategory is assigned to every Scoop product; the distributor only
// carries networking equipment.
const scoopCategory = "Networking"

// ScoopParser reads <products><product>...</product></products> feeds
type ScoopParser struct{}

func (ScoopParser) Format() supplier.FormatType { return supplier.FormatScoop }

func (ScoopParser) Detect(root *Node) bool {
	return strings.EqualFold(root.Name, "products") && root.Child("product") != nil
}

func (ScoopParser) Parse(root *Node, _ supplier.Supplier) []Record {
	items := root.ChildrenNamed("product")
	out := make([]Record, 0, len(items))
	for _, n := range items {
		out = append(out, Record{
			SKU:         n.Value("sku"),
			Name:        n.Value("name"),
			Description: n.Value("description"),
			Brand:       n.Value("brand"),
			Category:    scoopCategory,
			ImageURL:    n.Value("image_url"),
			Price:       decimal.NewFromFloat(ParseFloatOrZero(n.Value("dealer_price"))),
			Qty:         ParseIntOrZero(n.Value("stock")),
			Raw:         n.Map(),
		}.trimmed())
	}
	return out
}
