package feed

import (
	"strings"

	"github.com/feedsync/backend/internal/domain/supplier"
)

// syntechRegions are the warehouse stock columns summed into one quantity
var syntechRegions = []string{"cptstock", "jhbstock", "dbnstock"}

// SyntechParser reads <syntechstock><stock><product>...</product></stock>
// feeds.
type SyntechParser struct{}

func (SyntechParser) Format() supplier.FormatType { return supplier.FormatSyntech }

func (SyntechParser) Detect(root *Node) bool {
	return strings.EqualFold(root.Name, "syntechstock")
}

func (SyntechParser) Parse(root *Node, sup supplier.Supplier) []Record {
	container := root.Child("stock")
	if container == nil {
		container = root
	}

	items := container.ChildrenNamed("product")
	out := make([]Record, 0, len(items))
	for _, n := range items {
		qty := 0
		for _, region := range syntechRegions {
			qty += ParseStock(n.Value(region))
		}

		brand := n.FirstValue("attributes/brand", "manufacturer")
		if brand == "" {
			brand = sup.Name
		}

		out = append(out, Record{
			SKU:         n.Value("sku"),
			Name:        n.Value("name"),
			Description: n.Value("description"),
			Brand:       brand,
			Category:    n.Value("categories"),
			ImageURL:    n.Value("featured_image"),
			Price:       ParsePrice(n.Value("price")),
			Qty:         qty,
			Raw:         n.Map(),
		}.trimmed())
	}
	return out
}
