package models

import (
	"time"

	"github.com/feedsync/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ProductModel is one supplier's listing of a product. The natural key is
// (supplier_name, supplier_sku).
type ProductModel struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	MasterSKU    string          `gorm:"column:master_sku;type:varchar(255);not null;index:idx_products_master_sku"`
	SupplierName string          `gorm:"column:supplier_name;type:varchar(255);not null;uniqueIndex:uq_products_supplier_sku,priority:1"`
	SupplierSKU  string          `gorm:"column:supplier_sku;type:varchar(100);not null;uniqueIndex:uq_products_supplier_sku,priority:2"`
	Name         string          `gorm:"column:name;type:varchar(255);not null"`
	Description  string          `gorm:"column:description;type:varchar(500)"`
	Brand        string          `gorm:"column:brand;type:varchar(100)"`
	PriceExVAT   decimal.Decimal `gorm:"column:price_ex_vat;type:numeric(10,2);not null"`
	QtyOnHand    int             `gorm:"column:qty_on_hand;not null"`
	RawPayload   string          `gorm:"column:raw_payload;type:jsonb"`
	ImageURL     string          `gorm:"column:image_url;type:text"`
	Category     string          `gorm:"column:category;type:varchar(100);index:idx_products_category"`
	LastUpdated  time.Time       `gorm:"column:last_updated;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ProductUpsertColumns are overwritten when a listing already exists.
// created_at keeps its first-insert value.
var ProductUpsertColumns = []string{
	"master_sku",
	"name",
	"description",
	"brand",
	"price_ex_vat",
	"qty_on_hand",
	"raw_payload",
	"image_url",
	"category",
	"last_updated",
}

// ProductModelFromDomain converts a canonical product into a row
func ProductModelFromDomain(p *catalog.Product, now time.Time) *ProductModel {
	raw := string(p.RawPayload)
	if raw == "" {
		raw = "{}"
	}
	return &ProductModel{
		MasterSKU:    p.MasterSKU,
		SupplierName: p.SupplierName,
		SupplierSKU:  p.SupplierSKU,
		Name:         p.Name,
		Description:  p.Description,
		Brand:        p.Brand,
		PriceExVAT:   p.PriceExVAT,
		QtyOnHand:    p.QtyOnHand,
		RawPayload:   raw,
		ImageURL:     p.ImageURL,
		Category:     p.Category,
		LastUpdated:  now,
	}
}

// ToDomain converts the row back into a canonical product
func (m *ProductModel) ToDomain() catalog.Product {
	return catalog.Product{
		MasterSKU:    m.MasterSKU,
		SupplierSKU:  m.SupplierSKU,
		SupplierName: m.SupplierName,
		Name:         m.Name,
		Description:  m.Description,
		Brand:        m.Brand,
		PriceExVAT:   m.PriceExVAT,
		QtyOnHand:    m.QtyOnHand,
		ImageURL:     m.ImageURL,
		Category:     m.Category,
		RawPayload:   []byte(m.RawPayload),
	}
}
