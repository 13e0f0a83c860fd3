package feed

import (
	"strings"

	"github.com/feedsync/backend/internal/domain/supplier"
)

// pinnacleContainerPrefix starts the name of the element holding the product
// list. The rest of the name changes between exports.
const pinnacleContainerPrefix = "ProductData"

// PinnacleParser reads <PinnacleCatalogue><ProductData...><Product> feeds
type PinnacleParser struct{}

func (PinnacleParser) Format() supplier.FormatType { return supplier.FormatPinnacle }

func (PinnacleParser) Detect(root *Node) bool {
	return strings.EqualFold(root.Name, "PinnacleCatalogue") ||
		root.ChildWithPrefix(pinnacleContainerPrefix) != nil
}

func (PinnacleParser) Parse(root *Node, _ supplier.Supplier) []Record {
	container := root.ChildWithPrefix(pinnacleContainerPrefix)
	if container == nil {
		return nil
	}

	items := container.ChildrenNamed("Product")
	out := make([]Record, 0, len(items))
	for _, n := range items {
		out = append(out, Record{
			SKU:         n.Value("ProductCode"),
			Name:        n.Value("ProductName"),
			Description: n.Value("ProductDescription"),
			Brand:       n.Value("Brand"),
			Category:    n.Value("Category"),
			ImageURL:    n.Value("ImageLink"),
			Price:       ParsePrice(n.Value("Price")),
			Qty:         ParseStock(n.Value("StockOnHand")),
			Raw:         n.Map(),
		}.trimmed())
	}
	return out
}
