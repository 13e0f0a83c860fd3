package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// FallbackCategory is used when a product carries no category text at all
const FallbackCategory = "Miscellaneous"

// CategoryRule maps any of its keywords to a taxonomy category
type CategoryRule struct {
	Category string
	Keywords []string
}

// Matches reports whether the lowercased text contains one of the keywords
func (r CategoryRule) Matches(lowered string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// CategoryRules is the ordered taxonomy. The first matching rule wins, so
// "network storage" is Networking & Connectivity, not Storage.
var CategoryRules = []CategoryRule{
	{Category: "Networking & Connectivity", Keywords: []string{"network"}},
	{Category: "Storage", Keywords: []string{"storage", "hdd", "ssd", "drive"}},
	{Category: "Memory", Keywords: []string{"memory", "ram", "ddr"}},
	{Category: "Processors", Keywords: []string{"processor", "cpu"}},
	{Category: "Graphics Cards", Keywords: []string{"graphics", "gpu", "video card"}},
	{Category: "Laptops", Keywords: []string{"laptop", "notebook"}},
	{Category: "Desktops", Keywords: []string{"desktop", "workstation"}},
	{Category: "Displays", Keywords: []string{"monitor", "display"}},
	{Category: "Printers & Supplies", Keywords: []string{"printer", "ink", "toner"}},
	{Category: "Cables & Connectivity", Keywords: []string{"cable", "connector"}},
	{Category: "Power Solutions", Keywords: []string{"ups", "power", "battery"}},
	{Category: "Security", Keywords: []string{"security", "camera", "cctv"}},
}

// NormalizeCategory maps free category text onto the taxonomy.
// Unmatched text is returned trimmed with its first letter upper-cased.
func NormalizeCategory(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return FallbackCategory
	}

	lowered := strings.ToLower(text)
	for _, rule := range CategoryRules {
		if rule.Matches(lowered) {
			return rule.Category
		}
	}

	return Truncate(capitalize(text), MaxCategoryLength)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
