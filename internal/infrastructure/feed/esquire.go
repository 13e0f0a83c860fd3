package feed

import (
	"strings"

	"github.com/feedsync/backend/internal/domain/supplier"
)

// EsquireParser reads <Items><Item>...</Item></Items> feeds. Stock arrives as
// numbers, yes/no flags or free text and goes through ParseStock.
type EsquireParser struct{}

func (EsquireParser) Format() supplier.FormatType { return supplier.FormatEsquire }

func (EsquireParser) Detect(root *Node) bool {
	return strings.EqualFold(root.Name, "Items")
}

func (EsquireParser) Parse(root *Node, _ supplier.Supplier) []Record {
	items := root.ChildrenNamed("Item")
	out := make([]Record, 0, len(items))
	for _, n := range items {
		out = append(out, Record{
			SKU:         n.Value("StockCode"),
			Name:        n.Value("ProductName"),
			Description: n.Value("Description"),
			Brand:       n.Value("Manufacturer"),
			Category:    n.Value("Category"),
			ImageURL:    n.Value("ImageURL"),
			Price:       ParsePrice(n.Value("ProdPriceExclVAT")),
			Qty:         ParseStock(n.Value("ProdQty")),
			Raw:         n.Map(),
		}.trimmed())
	}
	return out
}
