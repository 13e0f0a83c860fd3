package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "feedsync/ingestion"

// IngestionMetrics records supplier cycles and scrape sessions
type IngestionMetrics struct {
	suppliersProcessed *Counter
	suppliersFailed    *Counter
	productsWritten    *Counter
	duplicatesDropped  *Counter
	scrapePages        *Counter
	supplierDuration   *Histogram
}

// NewIngestionMetrics registers the ingestion instruments on meter
func NewIngestionMetrics(meter metric.Meter) (*IngestionMetrics, error) {
	var (
		m   IngestionMetrics
		err error
	)
	if m.suppliersProcessed, err = NewCounter(meter, "ingestion.suppliers.processed", "Supplier cycles finished, by status", "{supplier}"); err != nil {
		return nil, err
	}
	if m.suppliersFailed, err = NewCounter(meter, "ingestion.suppliers.failed", "Supplier cycles that failed, by stage", "{supplier}"); err != nil {
		return nil, err
	}
	if m.productsWritten, err = NewCounter(meter, "ingestion.products.written", "Product rows inserted or updated", "{product}"); err != nil {
		return nil, err
	}
	if m.duplicatesDropped, err = NewCounter(meter, "ingestion.products.duplicates", "Duplicate SKUs dropped within a batch", "{product}"); err != nil {
		return nil, err
	}
	if m.scrapePages, err = NewCounter(meter, "scrape.pages", "Storefront listing pages visited", "{page}"); err != nil {
		return nil, err
	}
	if m.supplierDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ingestion.supplier.duration",
		Description: "Duration of one supplier fetch-to-write cycle",
		Unit:        "s",
		Boundaries:  SupplierDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewIngestionMetricsFromProvider is a convenience over mp.Meter
func NewIngestionMetricsFromProvider(mp *MeterProvider) (*IngestionMetrics, error) {
	return NewIngestionMetrics(mp.Meter(meterName))
}

// SupplierCycle describes a finished supplier cycle
type SupplierCycle struct {
	SupplierID string
	Format     string
	Status     string
	Stage      string
	Written    int
	Duplicates int
	Duration   time.Duration
}

// RecordSupplier records one supplier cycle. A nil receiver is a no-op.
func (m *IngestionMetrics) RecordSupplier(ctx context.Context, c SupplierCycle) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrSupplierID.String(c.SupplierID),
		AttrFormat.String(c.Format),
	}

	m.suppliersProcessed.Inc(ctx, append(attrs, AttrStatus.String(c.Status))...)
	if c.Stage != "" {
		m.suppliersFailed.Inc(ctx, append(attrs, AttrStage.String(c.Stage))...)
	}
	if c.Written > 0 {
		m.productsWritten.Add(ctx, int64(c.Written), attrs...)
	}
	if c.Duplicates > 0 {
		m.duplicatesDropped.Add(ctx, int64(c.Duplicates), attrs...)
	}
	m.supplierDuration.RecordDuration(ctx, c.Duration, attrs...)
}

// RecordScrapePages counts visited storefront pages
func (m *IngestionMetrics) RecordScrapePages(ctx context.Context, supplierID string, pages int) {
	if m == nil || pages <= 0 {
		return
	}
	m.scrapePages.Add(ctx, int64(pages), AttrSupplierID.String(supplierID))
}
