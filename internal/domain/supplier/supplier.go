package supplier

import (
	"context"
	"strings"
)

// FormatType is the closed set of feed formats the pipeline understands
type FormatType string

const (
	FormatUnknown  FormatType = "unknown"
	FormatCSV      FormatType = "csv"
	FormatScoop    FormatType = "scoop"
	FormatEsquire  FormatType = "esquire"
	FormatSyntech  FormatType = "syntech"
	FormatPinnacle FormatType = "pinnacle"
	// FormatScrape marks a supplier without a feed; its catalog comes from the
	// authenticated storefront scraper.
	FormatScrape FormatType = "scrape"
)

// ParseFormatType maps a configured type tag onto a FormatType.
// Tags are case-insensitive and may carry an "xml-" or "xml_" prefix.
func ParseFormatType(tag string) FormatType {
	t := strings.ToLower(strings.TrimSpace(tag))
	t = strings.TrimPrefix(t, "xml-")
	t = strings.TrimPrefix(t, "xml_")

	switch FormatType(t) {
	case FormatCSV, FormatScoop, FormatEsquire, FormatSyntech, FormatPinnacle, FormatScrape:
		return FormatType(t)
	default:
		return FormatUnknown
	}
}

// IsXML reports whether the format is one of the vendor XML schemas
func (f FormatType) IsXML() bool {
	switch f {
	case FormatScoop, FormatEsquire, FormatSyntech, FormatPinnacle:
		return true
	default:
		return false
	}
}

// IsValid reports whether the format is a known format
func (f FormatType) IsValid() bool {
	return f != FormatUnknown && ParseFormatType(string(f)) == f
}

// String implements fmt.Stringer
func (f FormatType) String() string {
	return string(f)
}

// Supplier is one configured catalog source. URL may hold credential
// placeholders until the registry resolves them.
type Supplier struct {
	ID      string
	Name    string
	URL     string
	Format  FormatType
	Enabled bool
}

// Registry lists suppliers in processing order
type Registry interface {
	List(ctx context.Context) ([]Supplier, error)
	Get(ctx context.Context, id string) (*Supplier, error)
}
