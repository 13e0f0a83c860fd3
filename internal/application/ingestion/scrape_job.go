package ingestion

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/feedsync/backend/internal/domain/catalog"
	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/domain/scrape"
	"github.com/feedsync/backend/internal/domain/shared"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/feedsync/backend/internal/infrastructure/config"
	"github.com/feedsync/backend/internal/infrastructure/feed"
	"github.com/feedsync/backend/internal/infrastructure/logger"
	"github.com/feedsync/backend/internal/infrastructure/scraper"
	"github.com/feedsync/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultScrapeTimeout bounds a whole scrape job, browser start included
const DefaultScrapeTimeout = 5 * time.Minute

const defaultScrapeSupplierID = "storefront"

// ErrScrapeDisabled is returned when scrape.enabled is false
var ErrScrapeDisabled = shared.NewDomainError("SCRAPE_DISABLED", "Storefront scraping is not enabled")

// BrowserFactory starts a browser bound to ctx. Cancelling ctx kills it.
type BrowserFactory func(ctx context.Context) (scraper.Browser, error)

// ChromeBrowserFactory launches headless Chrome with the scrape settings
func ChromeBrowserFactory(cfg config.ScrapeConfig, userAgent string, log *zap.Logger) BrowserFactory {
	return func(ctx context.Context) (scraper.Browser, error) {
		return scraper.NewChromeBrowser(ctx, scraper.ChromeConfig{
			Headless:  cfg.Headless,
			NoSandbox: cfg.NoSandbox,
			RemoteURL: cfg.RemoteURL,
			UserAgent: userAgent,
			Timeout:   cfg.NavigationTimeout,
			Logger:    log,
		})
	}
}

// ScrapeJobService logs into the storefront, walks its listing pages and
// writes the products found. Only one job runs at a time.
type ScrapeJobService struct {
	cfg        config.ScrapeConfig
	newBrowser BrowserFactory
	writer     catalog.ProductWriter
	metrics    *telemetry.IngestionMetrics
	logger     *zap.Logger
	timeout    time.Duration

	running sync.Mutex
}

// NewScrapeJobService creates the scrape job runner
func NewScrapeJobService(cfg config.ScrapeConfig, newBrowser BrowserFactory, writer catalog.ProductWriter, metrics *telemetry.IngestionMetrics, log *zap.Logger) *ScrapeJobService {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = DefaultScrapeTimeout
	}
	return &ScrapeJobService{
		cfg:        cfg,
		newBrowser: newBrowser,
		writer:     writer,
		metrics:    metrics,
		logger:     log,
		timeout:    timeout,
	}
}

// Supplier is the identity scraped products are stored under
func (s *ScrapeJobService) Supplier() supplier.Supplier {
	id := s.cfg.SupplierID
	if id == "" {
		id = defaultScrapeSupplierID
	}
	name := s.cfg.SupplierName
	if name == "" {
		name = id
	}
	return supplier.Supplier{ID: id, Name: name, Format: supplier.FormatScrape, Enabled: true}
}

// Run executes one scrape job. Pipeline failures are reported through the
// result; the error is only set when the job could not start at all.
// Credentials missing from req fall back to the configured ones.
func (s *ScrapeJobService) Run(ctx context.Context, req scrape.Request) (scrape.Result, error) {
	if !s.cfg.Enabled {
		return scrape.Result{}, ErrScrapeDisabled
	}
	if !s.running.TryLock() {
		return scrape.Result{}, shared.ErrAlreadyRunning
	}
	defer s.running.Unlock()

	if req.Username == "" && req.Password == "" {
		req.Username = s.cfg.Username
		req.Password = s.cfg.Password
	}

	sup := s.Supplier()
	var out bytes.Buffer
	log := logger.NewCapture(s.logger, &out).With(zap.String("supplier_id", sup.ID))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	ctx, span := telemetry.StartSpan(ctx, "scrape.job",
		telemetry.AttrSupplierID.String(sup.ID),
	)
	defer span.End()

	log.Info("Scrape job started", zap.Bool("test_mode", req.TestMode))
	start := time.Now()

	written, err := s.scrape(ctx, sup, req)
	cycle := telemetry.SupplierCycle{
		SupplierID: sup.ID,
		Format:     string(supplier.FormatScrape),
		Status:     string(ingestion.SupplierSucceeded),
		Written:    written,
		Duration:   time.Since(start),
	}
	if err != nil {
		msg := logger.MaskString(err.Error())
		telemetry.RecordError(span, err, msg)
		cycle.Status = string(ingestion.SupplierFailed)
		cycle.Stage = ingestion.Stage(err)
		log.Error("Scrape job failed", zap.String("stage", cycle.Stage), zap.String("error", msg))
	} else {
		log.Info("Scrape job finished", zap.Int("products", written), zap.Duration("elapsed", cycle.Duration))
	}
	s.metrics.RecordSupplier(ctx, cycle)

	return scrape.Result{
		Success:       err == nil,
		ProductsFound: written,
		Output:        out.String(),
	}, nil
}

func (s *ScrapeJobService) scrape(ctx context.Context, sup supplier.Supplier, req scrape.Request) (int, error) {
	log := logger.L(ctx)

	browser, err := s.newBrowser(ctx)
	if err != nil {
		return 0, err
	}

	outcome, err := scraper.NewController(browser, scraper.ConfigFromSettings(s.cfg)).Run(ctx, req)
	if outcome != nil {
		s.metrics.RecordScrapePages(ctx, sup.ID, outcome.Session.Pages)
	}
	if err != nil {
		return 0, err
	}

	records := make([]feed.Record, 0, len(outcome.Listings))
	for _, l := range outcome.Listings {
		records = append(records, l.Record())
	}

	products, dropped := feed.Canonicalize(sup, records)
	if dropped > 0 {
		log.Warn("Listings without SKU dropped", zap.Int("count", dropped))
	}
	feed.NormalizeCategories(products)

	products, dupes := catalog.Deduplicate(products)
	if dupes > 0 {
		log.Info("Duplicate SKUs removed, first occurrence kept", zap.Int("count", dupes))
	}
	if len(products) == 0 {
		log.Warn("No products found on the storefront")
		return 0, nil
	}

	written, err := s.writer.UpsertBatch(ctx, products)
	if err != nil {
		return 0, err
	}
	return written, nil
}
