package registry

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/domain/supplier"
)

// placeholderPattern matches {{NAME}} credential placeholders in feed URLs
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// LookupFunc returns the value of a named credential
type LookupFunc func(name string) (string, bool)

// Resolver substitutes credential placeholders in supplier URLs
type Resolver struct {
	lookup LookupFunc
}

// NewResolver creates a resolver backed by lookup
func NewResolver(lookup LookupFunc) *Resolver {
	return &Resolver{lookup: lookup}
}

// NewEnvResolver resolves placeholders from the process environment. Values
// from a .env file are visible once config.Load has run.
func NewEnvResolver() *Resolver {
	return NewResolver(os.LookupEnv)
}

// Placeholders returns the distinct placeholder names in raw, in order of
// first appearance.
func Placeholders(raw string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(raw, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Resolve returns a copy of sup with every placeholder in its URL replaced.
// Values are escaped for the URL part they land in, so a secret containing
// '&', '#' or '=' stays one query value. Any placeholder without a non-empty
// value makes the whole entry unusable.
func (r *Resolver) Resolve(sup supplier.Supplier) (supplier.Supplier, error) {
	var missing []string
	for _, name := range Placeholders(sup.URL) {
		if v, ok := r.lookup(name); !ok || v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return sup, &ingestion.ConfigError{
			SupplierID: sup.ID,
			Reason:     fmt.Sprintf("unresolved credential placeholder(s): %s", strings.Join(missing, ", ")),
		}
	}

	raw := sup.URL
	var b strings.Builder
	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(raw, -1) {
		v, _ := r.lookup(raw[loc[2]:loc[3]])
		b.WriteString(raw[last:loc[0]])
		b.WriteString(escapeFor(raw, loc[0], v))
		last = loc[1]
	}
	b.WriteString(raw[last:])
	sup.URL = b.String()
	return sup, nil
}

// escapeFor escapes v for the URL component that starts before offset at.
// Scheme and authority values are left as they are.
func escapeFor(raw string, at int, v string) string {
	prefix := raw[:at]
	if strings.ContainsAny(prefix, "?#") {
		return url.QueryEscape(v)
	}
	rest := prefix
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
		if !strings.Contains(rest, "/") {
			return v
		}
	}
	return url.PathEscape(v)
}
