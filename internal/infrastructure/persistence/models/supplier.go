package models

import (
	"time"

	"github.com/feedsync/backend/internal/domain/supplier"
)

// SupplierModel is a row of the suppliers table
type SupplierModel struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey"`
	Name      string    `gorm:"column:name;type:varchar(255);not null"`
	URL       string    `gorm:"column:url;type:text;not null"`
	Type      string    `gorm:"column:type;type:varchar(32);not null"`
	Enabled   bool      `gorm:"column:enabled;not null"`
	SortOrder int       `gorm:"column:sort_order;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}

// ToDomain converts the row into a registry entry. The URL keeps its
// credential placeholders.
func (m *SupplierModel) ToDomain() supplier.Supplier {
	return supplier.Supplier{
		ID:      m.ID,
		Name:    m.Name,
		URL:     m.URL,
		Format:  supplier.ParseFormatType(m.Type),
		Enabled: m.Enabled,
	}
}
