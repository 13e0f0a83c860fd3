package registry

import (
	"context"
	"fmt"

	"github.com/feedsync/backend/internal/domain/shared"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/feedsync/backend/internal/infrastructure/config"
)

// StaticRegistry serves the supplier list from the config file
type StaticRegistry struct {
	suppliers []supplier.Supplier
}

// NewStaticRegistry builds a registry from [[suppliers]] entries, keeping
// their file order.
func NewStaticRegistry(entries []config.SupplierConfig) *StaticRegistry {
	suppliers := make([]supplier.Supplier, 0, len(entries))
	for _, e := range entries {
		suppliers = append(suppliers, supplier.Supplier{
			ID:      e.ID,
			Name:    e.Name,
			URL:     e.URL,
			Format:  supplier.ParseFormatType(e.Type),
			Enabled: e.Enabled,
		})
	}
	return &StaticRegistry{suppliers: suppliers}
}

// List returns all entries, enabled or not
func (r *StaticRegistry) List(_ context.Context) ([]supplier.Supplier, error) {
	out := make([]supplier.Supplier, len(r.suppliers))
	copy(out, r.suppliers)
	return out, nil
}

// Get returns the entry with the given id
func (r *StaticRegistry) Get(_ context.Context, id string) (*supplier.Supplier, error) {
	for _, s := range r.suppliers {
		if s.ID == id {
			found := s
			return &found, nil
		}
	}
	return nil, fmt.Errorf("supplier %q: %w", id, shared.ErrNotFound)
}
