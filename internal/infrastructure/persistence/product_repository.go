package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/feedsync/backend/internal/domain/catalog"
	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/infrastructure/logger"
	"github.com/feedsync/backend/internal/infrastructure/persistence/models"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultUpsertChunkSize is the number of rows per INSERT statement
const DefaultUpsertChunkSize = 300

// ProductRepository writes canonical products with upsert semantics
type ProductRepository struct {
	db        *Database
	chunkSize int
	now       func() time.Time
}

// NewProductRepository creates a repository. chunkSize <= 0 uses the default.
func NewProductRepository(db *Database, chunkSize int) *ProductRepository {
	if chunkSize <= 0 {
		chunkSize = DefaultUpsertChunkSize
	}
	return &ProductRepository{db: db, chunkSize: chunkSize, now: time.Now}
}

// UpsertBatch inserts or updates products keyed by (supplier_name,
// supplier_sku) inside one transaction. Either every row is written or none
// is. The batch must not repeat a key; callers deduplicate first.
func (r *ProductRepository) UpsertBatch(ctx context.Context, products []catalog.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	supplierName := products[0].SupplierName
	log := logger.L(ctx)

	if err := r.db.Ping(ctx); err != nil {
		return 0, &ingestion.WriteError{Kind: ingestion.WriteConnection, Supplier: supplierName, Err: err}
	}

	now := r.now().UTC()
	rows := make([]*models.ProductModel, 0, len(products))
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return 0, &ingestion.WriteError{
				Kind:     ingestion.WriteConstraint,
				Supplier: supplierName,
				Err:      fmt.Errorf("product %q: %w", products[i].SupplierSKU, err),
			}
		}
		rows = append(rows, models.ProductModelFromDomain(&products[i], now))
	}

	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "supplier_name"}, {Name: "supplier_sku"}},
		DoUpdates: clause.AssignmentColumns(models.ProductUpsertColumns),
	}

	written := 0
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		for start := 0; start < len(rows); start += r.chunkSize {
			end := min(start+r.chunkSize, len(rows))
			if err := tx.Clauses(upsert).Create(rows[start:end]).Error; err != nil {
				return fmt.Errorf("rows %d-%d: %w", start, end-1, err)
			}
			written += end - start
		}
		return nil
	})
	if err != nil {
		writeErr := classifyWriteError(supplierName, err)
		log.Error("Product batch rolled back",
			zap.String("supplier", supplierName),
			zap.String("kind", string(writeErr.Kind)),
			zap.Int("batch_size", len(rows)),
			zap.Error(err),
		)
		return 0, writeErr
	}

	log.Debug("Product batch written",
		zap.String("supplier", supplierName),
		zap.Int("rows", written),
		zap.Int("chunk_size", r.chunkSize),
	)
	return written, nil
}

// CountBySupplier returns the number of stored listings for a supplier
func (r *ProductRepository) CountBySupplier(ctx context.Context, supplierName string) (int64, error) {
	var n int64
	err := r.db.DB.WithContext(ctx).Model(&models.ProductModel{}).
		Where("supplier_name = ?", supplierName).
		Count(&n).Error
	return n, err
}

// FindBySupplierSKU loads one listing
func (r *ProductRepository) FindBySupplierSKU(ctx context.Context, supplierName, sku string) (*catalog.Product, *models.ProductModel, error) {
	var m models.ProductModel
	err := r.db.DB.WithContext(ctx).
		Where("supplier_name = ? AND supplier_sku = ?", supplierName, sku).
		First(&m).Error
	if err != nil {
		return nil, nil, err
	}
	p := m.ToDomain()
	return &p, &m, nil
}

func classifyWriteError(supplierName string, err error) *ingestion.WriteError {
	return &ingestion.WriteError{Kind: writeErrorKind(err), Supplier: supplierName, Err: err}
}

func writeErrorKind(err error) ingestion.WriteErrorKind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return ingestion.WriteConstraint
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return ingestion.WriteConnection
		}
		return ingestion.WriteUnknown
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ingestion.WriteConstraint
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &netErr) {
		return ingestion.WriteConnection
	}
	return ingestion.WriteUnknown
}

// Compile-time check
var _ catalog.ProductWriter = (*ProductRepository)(nil)
