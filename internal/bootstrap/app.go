// Package bootstrap assembles the ingestion services from configuration.
// The server and the ingest CLI share it so both run the same pipeline.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	appingest "github.com/feedsync/backend/internal/application/ingestion"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/feedsync/backend/internal/infrastructure/cache"
	"github.com/feedsync/backend/internal/infrastructure/config"
	"github.com/feedsync/backend/internal/infrastructure/feed"
	"github.com/feedsync/backend/internal/infrastructure/logger"
	"github.com/feedsync/backend/internal/infrastructure/persistence"
	"github.com/feedsync/backend/internal/infrastructure/registry"
	"github.com/feedsync/backend/internal/infrastructure/storage"
	"github.com/feedsync/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logTimeFormat = "2006-01-02 15:04:05"

// App holds every long-lived component built from one Config
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Providers
	DB        *persistence.Database
	Registry  supplier.Registry
	Ingestion *appingest.Service
	Scrape    *appingest.ScrapeJobService

	closers []func(context.Context) error
}

// New builds the application. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
			app = nil
		}
	}()

	if err = app.initLogger(ctx); err != nil {
		return app, err
	}
	log := app.Logger

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel))
	app.DB, err = persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return app, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.closers = append(app.closers, func(context.Context) error { return app.DB.Close() })
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err = telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), log).Register(app.DB.DB); err != nil {
			return app, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}

	switch cfg.Registry.Source {
	case config.SourceConfig:
		app.Registry = registry.NewStaticRegistry(cfg.Suppliers)
	default:
		app.Registry = persistence.NewGormSupplierRepository(app.DB.DB)
	}
	log.Info("Supplier registry ready", zap.String("source", cfg.Registry.Source))

	lock, err := cache.NewRunLockFactory(cfg.Redis, cache.WithLogger(log)).Create()
	if err != nil {
		return app, fmt.Errorf("failed to create run lock: %w", err)
	}
	if redisLock, ok := lock.(*cache.RedisRunLock); ok {
		app.closers = append(app.closers, func(context.Context) error { return redisLock.Close() })
	}

	archive, err := app.newArchive(ctx)
	if err != nil {
		return app, err
	}

	metrics, err := telemetry.NewIngestionMetricsFromProvider(app.Telemetry.Meter)
	if err != nil {
		return app, fmt.Errorf("failed to create ingestion metrics: %w", err)
	}

	writer := persistence.NewProductRepository(app.DB, cfg.Database.UpsertChunkSize)
	fetcher := feed.NewFetcher(
		feed.WithTimeout(cfg.Fetch.Timeout),
		feed.WithRetryDelay(cfg.Fetch.RetryDelay),
		feed.WithUserAgent(cfg.Fetch.UserAgent),
		feed.WithMaxBodyBytes(cfg.Fetch.MaxBodyBytes),
	)

	app.Ingestion = appingest.NewService(app.Registry, appingest.Context{
		Fetcher:     fetcher,
		Credentials: registry.NewEnvResolver(),
		Writer:      writer,
		Archive:     archive,
		Metrics:     metrics,
		Logger:      log,
	}, lock,
		appingest.WithLockTTL(cfg.Redis.LockTTL),
		appingest.WithAsyncTimeout(cfg.Scheduler.RunTimeout),
	)
	app.closers = append(app.closers, app.Ingestion.Close)

	app.Scrape = appingest.NewScrapeJobService(
		cfg.Scrape,
		appingest.ChromeBrowserFactory(cfg.Scrape, cfg.Fetch.UserAgent, log),
		writer,
		metrics,
		log,
	)
	return app, nil
}

// initLogger creates the logger, then the telemetry providers, then rebuilds
// the logger with an OTEL core when log export is on.
func (a *App) initLogger(ctx context.Context) error {
	cfg := a.Config
	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logTimeFormat,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.Logger = log

	a.Telemetry, err = telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.closers = append(a.closers, a.Telemetry.Shutdown)

	if cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled {
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		withOTEL, err := logger.New(logCfg, telemetry.NewZapOTELCore(cfg.Telemetry.ServiceName, a.Telemetry.Logs, level))
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.Logger = withOTEL
	}
	return nil
}

func (a *App) newArchive(ctx context.Context) (storage.FeedArchive, error) {
	if !a.Config.Storage.Enabled {
		return storage.NopArchive{}, nil
	}
	archive, err := storage.NewS3FeedArchive(&a.Config.Storage, storage.WithLogger(a.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create feed archive: %w", err)
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		// archiving is best effort; runs go ahead without it
		a.Logger.Warn("Feed archive bucket unavailable", zap.Error(err))
	}
	return archive, nil
}

// Close releases resources in reverse order of creation
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.Logger != nil {
		logger.Sync(a.Logger)
	}
	return errors.Join(errs...)
}
