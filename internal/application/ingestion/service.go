package ingestion

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/feedsync/backend/internal/domain/catalog"
	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/domain/shared"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/feedsync/backend/internal/infrastructure/cache"
	"github.com/feedsync/backend/internal/infrastructure/feed"
	"github.com/feedsync/backend/internal/infrastructure/logger"
	"github.com/feedsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Triggers recorded on run reports
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerCLI       = "cli"
)

const runLockName = "ingestion"

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithLockTTL sets how long the run lock is held before it expires
func WithLockTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithAsyncTimeout bounds runs started with StartRun
func WithAsyncTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.asyncTimeout = d
		}
	}
}

// WithReportStore replaces the report store
func WithReportStore(store *ReportStore) ServiceOption {
	return func(s *Service) {
		s.reports = store
	}
}

// Service runs supplier ingestion cycles
type Service struct {
	registry     supplier.Registry
	pipeline     Context
	lock         cache.RunLock
	reports      *ReportStore
	lockTTL      time.Duration
	asyncTimeout time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates the ingestion service
func NewService(registry supplier.Registry, pipeline Context, lock cache.RunLock, opts ...ServiceOption) *Service {
	pipeline.withDefaults()
	if lock == nil {
		lock = cache.NewInMemoryRunLock()
	}
	s := &Service{
		registry:     registry,
		pipeline:     pipeline,
		lock:         lock,
		reports:      NewReportStore(defaultReportCapacity),
		lockTTL:      cache.DefaultLockTTL,
		asyncTimeout: cache.DefaultLockTTL,
		cancels:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAll processes every enabled supplier in registry order and blocks until
// the run completes. It returns shared.ErrAlreadyRunning when another run
// holds the lock.
func (s *Service) RunAll(ctx context.Context, trigger string) (string, error) {
	return s.RunSupplier(ctx, trigger, "")
}

// RunSupplier processes one supplier, or all of them when supplierID is empty
func (s *Service) RunSupplier(ctx context.Context, trigger, supplierID string) (string, error) {
	report, err := s.begin(ctx, trigger)
	if err != nil {
		return "", err
	}
	defer s.release(ctx, report.ID)

	s.execute(ctx, report, supplierID)
	summary := report.Snapshot()
	if summary.Status == ingestion.RunFailed {
		return report.ID, errors.New(summary.Error)
	}
	return report.ID, nil
}

// StartRun takes the run lock and processes suppliers in the background.
// The returned id can be polled with Report.
func (s *Service) StartRun(ctx context.Context, trigger, supplierID string) (string, error) {
	report, err := s.begin(ctx, trigger)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.asyncTimeout)
	s.mu.Lock()
	s.cancels[report.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, report.ID)
			s.mu.Unlock()
			cancel()
		}()
		defer s.release(runCtx, report.ID)

		s.execute(runCtx, report, supplierID)
	}()

	return report.ID, nil
}

// Report returns the current state of a run
func (s *Service) Report(id string) (ingestion.RunSummary, error) {
	return s.reports.Get(id)
}

// RecentReports returns up to limit reports, newest first
func (s *Service) RecentReports(limit int) []ingestion.RunSummary {
	return s.reports.Recent(limit)
}

// Close cancels background runs and waits for them to finish
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) begin(ctx context.Context, trigger string) (*ingestion.RunReport, error) {
	if trigger == "" {
		trigger = TriggerManual
	}
	id := uuid.New().String()

	ok, err := s.lock.TryAcquire(ctx, runLockName, id, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, shared.ErrAlreadyRunning
	}

	report := ingestion.NewRunReport(id, trigger)
	s.reports.Put(report)
	return report, nil
}

func (s *Service) release(ctx context.Context, runID string) {
	if err := s.lock.Release(context.WithoutCancel(ctx), runLockName, runID); err != nil {
		s.pipeline.Logger.Warn("Failed to release run lock", zap.String("run_id", runID), zap.Error(err))
	}
}

func (s *Service) execute(ctx context.Context, report *ingestion.RunReport, supplierID string) {
	ctx = logger.WithContext(ctx, s.pipeline.Logger)
	ctx = logger.WithRunID(ctx, report.ID)
	log := logger.L(ctx)

	ctx, span := telemetry.StartSpan(ctx, "ingestion.run",
		attribute.String("run.id", report.ID),
		telemetry.AttrTrigger.String(report.Trigger),
	)
	defer span.End()

	suppliers, err := s.selectSuppliers(ctx, supplierID)
	if err != nil {
		msg := logger.MaskString(err.Error())
		telemetry.RecordError(span, err, msg)
		log.Error("Ingestion run aborted", zap.String("error", msg))
		report.Fail(msg)
		return
	}

	log.Info("Ingestion run started",
		zap.String("trigger", report.Trigger),
		zap.Int("suppliers", len(suppliers)),
	)

	for _, sup := range suppliers {
		if ctx.Err() != nil {
			report.Add(ingestion.SupplierResult{
				SupplierID:       sup.ID,
				SupplierName:     sup.Name,
				Status:           ingestion.SupplierSkipped,
				ConfiguredFormat: sup.Format,
				Error:            "run cancelled",
				StartedAt:        time.Now(),
			})
			continue
		}
		report.Add(s.processSupplier(ctx, sup))
	}

	report.Complete()
	summary := report.Snapshot()
	log.Info("Ingestion run completed",
		zap.Int("written", summary.Written),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(summary.StartedAt)),
	)
}

func (s *Service) selectSuppliers(ctx context.Context, supplierID string) ([]supplier.Supplier, error) {
	if supplierID == "" {
		suppliers, err := s.registry.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list suppliers: %w", err)
		}
		return suppliers, nil
	}

	sup, err := s.registry.Get(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("supplier %s: %w", supplierID, err)
	}
	return []supplier.Supplier{*sup}, nil
}

// processSupplier runs one supplier through the pipeline. A panic or error
// is confined to this supplier's result.
func (s *Service) processSupplier(ctx context.Context, sup supplier.Supplier) (result ingestion.SupplierResult) {
	ctx = logger.WithSupplierID(ctx, sup.ID)
	log := logger.L(ctx)

	result = ingestion.SupplierResult{
		SupplierID:       sup.ID,
		SupplierName:     sup.Name,
		ConfiguredFormat: sup.Format,
		StartedAt:        time.Now(),
	}

	ctx, span := telemetry.StartSpan(ctx, "ingestion.supplier",
		telemetry.AttrSupplierID.String(sup.ID),
		telemetry.AttrFormat.String(sup.Format.String()),
	)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			result.Status = ingestion.SupplierFailed
			result.Stage = "unknown"
			result.Error = logger.MaskString(err.Error())
			log.Error("Supplier cycle panicked",
				zap.String("error", result.Error),
				zap.ByteString("stack", debug.Stack()),
			)
		}
		result.Duration = time.Since(result.StartedAt)

		span.SetAttributes(telemetry.AttrStatus.String(string(result.Status)))
		if result.Status == ingestion.SupplierFailed {
			telemetry.RecordError(span, errors.New(result.Error), result.Error)
		}
		span.End()

		s.pipeline.Metrics.RecordSupplier(ctx, telemetry.SupplierCycle{
			SupplierID: sup.ID,
			Format:     string(sup.Format),
			Status:     string(result.Status),
			Stage:      result.Stage,
			Written:    result.Written,
			Duplicates: result.Duplicates,
			Duration:   result.Duration,
		})
	}()

	switch {
	case !sup.Enabled:
		result.Status = ingestion.SupplierSkipped
		log.Info("Supplier disabled, skipping")
		return result
	case sup.Format == supplier.FormatScrape:
		result.Status = ingestion.SupplierSkipped
		log.Info("Supplier is fed by the storefront scraper, skipping")
		return result
	}

	if err := s.runPipeline(ctx, sup, &result); err != nil {
		msg := logger.MaskString(err.Error())
		result.Fail(err, msg)
		log.Error("Supplier cycle failed", zap.String("stage", result.Stage), zap.String("error", msg))
		return result
	}

	log.Info("Supplier cycle finished",
		zap.String("status", string(result.Status)),
		zap.Int("parsed", result.Parsed),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("written", result.Written),
	)
	return result
}

func (s *Service) runPipeline(ctx context.Context, sup supplier.Supplier, result *ingestion.SupplierResult) error {
	log := logger.L(ctx)
	p := s.pipeline

	resolved := sup
	if p.Credentials != nil {
		var err error
		if resolved, err = p.Credentials.Resolve(sup); err != nil {
			return err
		}
	}

	payload, err := p.Fetcher.Fetch(ctx, resolved.URL)
	if err != nil {
		return err
	}
	result.BytesFetched = len(payload)

	if len(payload) > 0 {
		runID := logger.GetRunID(ctx)
		if key, err := p.Archive.Store(ctx, sup.ID, runID, sup.Format, payload); err != nil {
			log.Warn("Failed to archive feed payload", logger.MaskedError(err))
		} else if key != "" {
			log.Debug("Feed payload archived", zap.String("key", key))
		}
	}

	decoded, err := p.Decoder.Dispatch(ctx, resolved, payload)
	if err != nil {
		return err
	}
	result.DetectedFormat = decoded.Format
	result.Parsed = len(decoded.Records)

	products, dropped := feed.Canonicalize(resolved, decoded.Records)
	if dropped > 0 {
		log.Warn("Records without SKU dropped", zap.Int("count", dropped))
	}
	feed.NormalizeCategories(products)

	products, dupes := catalog.Deduplicate(products)
	result.Canonical = len(products)
	result.Duplicates = dupes
	if dupes > 0 {
		log.Info("Duplicate SKUs removed, first occurrence kept", zap.Int("count", dupes))
	}

	if len(products) == 0 {
		result.Status = ingestion.SupplierEmpty
		return nil
	}

	written, err := p.Writer.UpsertBatch(ctx, products)
	if err != nil {
		var writeErr *ingestion.WriteError
		if !errors.As(err, &writeErr) {
			err = &ingestion.WriteError{Kind: ingestion.WriteUnknown, Supplier: sup.ID, Err: err}
		}
		return err
	}
	result.Written = written
	result.Status = ingestion.SupplierSucceeded
	return nil
}
