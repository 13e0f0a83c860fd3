package feed

import (
	"strings"

	"github.com/feedsync/backend/internal/domain/catalog"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/shopspring/decimal"
)

// Record is the loosely-typed intermediate product a parser emits before
// canonicalization.
type Record struct {
	SKU         string
	Name        string
	Description string
	Brand       string
	Category    string
	ImageURL    string
	Price       decimal.Decimal
	Qty         int
	Raw         map[string]any
}

// trimmed applies whitespace trimming and the shared field limits
func (r Record) trimmed() Record {
	r.SKU = strings.TrimSpace(r.SKU)
	r.Name = catalog.Truncate(strings.TrimSpace(r.Name), catalog.MaxNameLength)
	r.Description = catalog.Truncate(strings.TrimSpace(r.Description), catalog.MaxDescriptionLength)
	r.Brand = catalog.Truncate(strings.TrimSpace(r.Brand), catalog.MaxBrandLength)
	r.Category = catalog.Truncate(strings.TrimSpace(r.Category), catalog.MaxCategoryLength)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	return r
}

// XMLParser turns one vendor's XML shape into records
type XMLParser interface {
	Format() supplier.FormatType
	// Detect reports whether the document root has this vendor's shape
	Detect(root *Node) bool
	Parse(root *Node, sup supplier.Supplier) []Record
}

// DefaultXMLParsers returns the vendor parsers in detection order
func DefaultXMLParsers() []XMLParser {
	return []XMLParser{
		SyntechParser{},
		PinnacleParser{},
		EsquireParser{},
		ScoopParser{},
	}
}
