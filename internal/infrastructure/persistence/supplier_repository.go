package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/feedsync/backend/internal/domain/shared"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/feedsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSupplierRepository reads the supplier registry from the suppliers table
type GormSupplierRepository struct {
	db *gorm.DB
}

// NewGormSupplierRepository creates a new GormSupplierRepository
func NewGormSupplierRepository(db *gorm.DB) *GormSupplierRepository {
	return &GormSupplierRepository{db: db}
}

// List returns every supplier ordered by sort_order, then id
func (r *GormSupplierRepository) List(ctx context.Context) ([]supplier.Supplier, error) {
	var rows []models.SupplierModel
	if err := r.db.WithContext(ctx).Order("sort_order ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}

	out := make([]supplier.Supplier, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Get finds a supplier by its ID
func (r *GormSupplierRepository) Get(ctx context.Context, id string) (*supplier.Supplier, error) {
	var row models.SupplierModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("supplier %q: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	s := row.ToDomain()
	return &s, nil
}

// Save inserts a supplier or updates the existing row with the same id
func (r *GormSupplierRepository) Save(ctx context.Context, s supplier.Supplier, sortOrder int) error {
	row := models.SupplierModel{
		ID:        s.ID,
		Name:      s.Name,
		URL:       s.URL,
		Type:      s.Format.String(),
		Enabled:   s.Enabled,
		SortOrder: sortOrder,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "url", "type", "enabled", "sort_order", "updated_at"}),
	}).Create(&row).Error
}

var _ supplier.Registry = (*GormSupplierRepository)(nil)
