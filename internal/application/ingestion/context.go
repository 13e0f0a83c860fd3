// Package ingestion runs the supplier feed pipeline and the storefront
// scrape job.
package ingestion

import (
	"context"

	"github.com/feedsync/backend/internal/domain/catalog"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/feedsync/backend/internal/infrastructure/feed"
	"github.com/feedsync/backend/internal/infrastructure/storage"
	"github.com/feedsync/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// FeedFetcher downloads a feed
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FeedDecoder turns a payload into intermediate records
type FeedDecoder interface {
	Dispatch(ctx context.Context, sup supplier.Supplier, payload []byte) (*feed.DispatchResult, error)
}

// CredentialResolver fills credential placeholders in a supplier's URL
type CredentialResolver interface {
	Resolve(sup supplier.Supplier) (supplier.Supplier, error)
}

// Context carries every collaborator a pipeline stage needs. It is built
// once per process and passed explicitly instead of living in globals.
type Context struct {
	Fetcher     FeedFetcher
	Decoder     FeedDecoder
	Credentials CredentialResolver
	Writer      catalog.ProductWriter
	Archive     storage.FeedArchive
	Metrics     *telemetry.IngestionMetrics
	Logger      *zap.Logger
}

func (c *Context) withDefaults() {
	if c.Decoder == nil {
		c.Decoder = feed.NewDispatcher()
	}
	if c.Archive == nil {
		c.Archive = storage.NopArchive{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
