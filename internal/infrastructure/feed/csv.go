package feed

import (
	"fmt"
	"strings"

	"github.com/feedsync/backend/internal/domain/supplier"
	csvimport "github.com/feedsync/backend/internal/infrastructure/import"
)

// csvStatusActive is the only row status that is ingested
const csvStatusActive = "active"

// Column names accepted for each field, in preference order
var (
	csvSKUColumns         = []string{"SKU", "Code", "StockCode"}
	csvNameColumns        = []string{"Name", "ProductName", "Title"}
	csvDescriptionColumns = []string{"Description", "LongDescription"}
	csvBrandColumns       = []string{"Brand", "Manufacturer"}
	csvCategoryColumns    = []string{"Category", "Categories"}
	csvPriceColumns       = []string{"Price", "PriceExVAT", "DealerPrice"}
	csvStockColumns       = []string{"Stock", "Qty", "Quantity"}
	csvImageColumns       = []string{"Image", "ImageURL", "Image_URL"}
)

// CSVResult carries parsed records and the rows that were rejected
type CSVResult struct {
	Records  []Record
	Inactive int
	Errors   *csvimport.ErrorCollection
}

// ParseCSV reads a header-keyed CSV export and keeps rows whose Status is
// Active.
func ParseCSV(data []byte, _ supplier.Supplier) (*CSVResult, error) {
	p, err := csvimport.ParseFromBytes(data)
	if err != nil {
		return nil, err
	}
	if err := p.ParseHeader(); err != nil {
		return nil, err
	}
	if !hasAny(p, csvSKUColumns) {
		return nil, fmt.Errorf("CSV header has no SKU column (got %s)", strings.Join(p.Headers(), ", "))
	}

	errs := csvimport.NewErrorCollection(50)
	rows, err := p.ReadAllRows(errs)
	if err != nil {
		return nil, err
	}

	res := &CSVResult{Errors: errs, Records: make([]Record, 0, len(rows))}
	for _, row := range rows {
		if !strings.EqualFold(row.Get("Status"), csvStatusActive) {
			res.Inactive++
			continue
		}

		sku := row.First(csvSKUColumns...)
		if sku == "" {
			errs.AddRequiredError(row.LineNumber, "SKU")
			continue
		}

		raw := make(map[string]any, len(row.Data))
		for i, h := range p.Headers() {
			if i < len(row.RawFields) {
				raw[h] = row.RawFields[i]
			}
		}

		res.Records = append(res.Records, Record{
			SKU:         sku,
			Name:        row.First(csvNameColumns...),
			Description: row.First(csvDescriptionColumns...),
			Brand:       row.First(csvBrandColumns...),
			Category:    row.First(csvCategoryColumns...),
			ImageURL:    row.First(csvImageColumns...),
			Price:       ParsePrice(row.First(csvPriceColumns...)),
			Qty:         ParseStock(row.First(csvStockColumns...)),
			Raw:         raw,
		}.trimmed())
	}

	return res, nil
}

func hasAny(p *csvimport.CSVParser, columns []string) bool {
	for _, c := range columns {
		if p.HasHeader(c) {
			return true
		}
	}
	return false
}
