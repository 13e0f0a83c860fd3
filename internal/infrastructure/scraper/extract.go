package scraper

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/infrastructure/feed"
	"github.com/shopspring/decimal"
)

// Selectors are CSS selectors for the storefront's login form and listing
// markup. Name, Price, Link, Image, SKU and Stock are relative to one
// Product node.
type Selectors struct {
	Username string
	Password string
	Submit   string

	Product string
	Name    string
	Price   string
	Link    string
	Image   string
	SKU     string
	// SKUAttribute is read from the SKU element; its text is used when empty
	SKUAttribute string
	Stock        string
	Next         string
}

// Listing is one product card read from a listing page
type Listing struct {
	SKU      string
	Name     string
	Price    decimal.Decimal
	PriceRaw string
	Stock    int
	Link     string
	ImageURL string
	Page     int
}

// Record converts the listing into the feed pipeline's intermediate record
func (l Listing) Record() feed.Record {
	return feed.Record{
		SKU:      l.SKU,
		Name:     l.Name,
		ImageURL: l.ImageURL,
		Price:    l.Price,
		Qty:      l.Stock,
		Raw: map[string]any{
			"sku":   l.SKU,
			"name":  l.Name,
			"price": l.PriceRaw,
			"link":  l.Link,
			"image": l.ImageURL,
			"page":  l.Page,
		},
	}
}

// ExtractListings reads every product node on a page. Nodes that cannot be
// read are reported and skipped; the rest of the page is still returned.
func ExtractListings(html, pageURL string, sel Selectors, page int) ([]Listing, []*ingestion.ExtractionError, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, err
	}
	base, _ := url.Parse(pageURL)

	var (
		listings []Listing
		skipped  []*ingestion.ExtractionError
	)
	doc.Find(sel.Product).Each(func(i int, s *goquery.Selection) {
		l, reason := extractListing(s, base, sel)
		if reason != "" {
			skipped = append(skipped, &ingestion.ExtractionError{Page: page, Index: i, Reason: reason})
			return
		}
		l.Page = page
		listings = append(listings, l)
	})
	return listings, skipped, nil
}

func extractListing(s *goquery.Selection, base *url.URL, sel Selectors) (Listing, string) {
	var l Listing

	l.Name = collapseSpace(s.Find(sel.Name).First().Text())
	if l.Name == "" {
		return l, "missing name"
	}

	if sel.Link != "" {
		if href, ok := s.Find(sel.Link).First().Attr("href"); ok {
			l.Link = resolve(base, href)
		}
	}

	if sel.SKU != "" {
		skuNode := s.Find(sel.SKU).First()
		if sel.SKUAttribute != "" {
			l.SKU, _ = skuNode.Attr(sel.SKUAttribute)
		}
		if strings.TrimSpace(l.SKU) == "" {
			l.SKU = skuNode.Text()
		}
		l.SKU = strings.TrimSpace(l.SKU)
	}
	if l.SKU == "" {
		l.SKU = skuFromLink(l.Link)
	}
	if l.SKU == "" {
		return l, "missing sku and product link"
	}

	l.PriceRaw = collapseSpace(s.Find(sel.Price).First().Text())
	if !strings.ContainsFunc(l.PriceRaw, unicode.IsDigit) {
		return l, "unparseable price " + strconv.Quote(l.PriceRaw)
	}
	l.Price = feed.ParsePrice(l.PriceRaw)

	if sel.Image != "" {
		img := s.Find(sel.Image).First()
		src, ok := img.Attr("src")
		if !ok || src == "" || strings.HasPrefix(src, "data:") {
			src, _ = img.Attr("data-src")
		}
		if src != "" {
			l.ImageURL = resolve(base, src)
		}
	}

	if sel.Stock != "" {
		l.Stock = feed.ParseStock(s.Find(sel.Stock).First().Text())
	}
	return l, ""
}

// NextPage reports whether the page has a next-page control and, when it is
// a link, the absolute URL it points to.
func NextPage(html, pageURL, selector string) (string, bool, error) {
	if selector == "" {
		return "", false, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, err
	}
	next := doc.Find(selector).First()
	if next.Length() == 0 {
		return "", false, nil
	}
	if _, disabled := next.Attr("disabled"); disabled || next.HasClass("disabled") {
		return "", false, nil
	}

	href, _ := next.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", true, nil
	}
	base, _ := url.Parse(pageURL)
	return resolve(base, href), true, nil
}

// skuFromLink derives a SKU from a product URL: an explicit sku or id query
// parameter, else the last path segment without extension.
//
//	https://shop.example/products/ab-123/    -> ab-123
//	https://shop.example/item.php?sku=QX-9   -> QX-9
func skuFromLink(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	for _, key := range []string{"sku", "id"} {
		if v := strings.TrimSpace(u.Query().Get(key)); v != "" {
			return v
		}
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	return strings.TrimSuffix(seg, path.Ext(seg))
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
