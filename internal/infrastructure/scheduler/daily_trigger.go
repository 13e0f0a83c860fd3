// Package scheduler triggers the daily ingestion run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/feedsync/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TriggerScheduled is the trigger name recorded on scheduled runs
const TriggerScheduled = "scheduled"

// RunStarter starts an ingestion run and blocks until it finishes
type RunStarter interface {
	RunAll(ctx context.Context, trigger string) (string, error)
}

// DailyTriggerConfig holds configuration for the daily trigger
type DailyTriggerConfig struct {
	// Hour and Minute give the local time of the daily run (24h)
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// RunTimeout bounds one run. Zero means no bound.
	RunTimeout time.Duration
}

// DefaultDailyTriggerConfig returns the default configuration: 02:00 daily
func DefaultDailyTriggerConfig() DailyTriggerConfig {
	return DailyTriggerConfig{
		Hour:          2,
		CheckInterval: time.Minute,
		RunTimeout:    2 * time.Hour,
	}
}

// Validate checks the configured time of day
func (c DailyTriggerConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: daily time %02d:%02d", ErrInvalidConfig, c.Hour, c.Minute)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// DailyTrigger starts one ingestion run per day at the configured time
type DailyTrigger struct {
	config DailyTriggerConfig
	runner RunStarter
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewDailyTrigger creates a new daily trigger
func NewDailyTrigger(config DailyTriggerConfig, runner RunStarter, logger *zap.Logger) (*DailyTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &DailyTrigger{
		config: config,
		runner: runner,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start starts the background loop
func (c *DailyTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Daily ingestion trigger started",
		zap.String("at", fmt.Sprintf("%02d:%02d", c.config.Hour, c.config.Minute)),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop cancels the loop, including an in-flight run, and waits for it
func (c *DailyTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Daily ingestion trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *DailyTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger starts the run once per calendar day, at or after the
// configured time, so a late tick does not skip the day.
func (c *DailyTrigger) checkAndTrigger(ctx context.Context) bool {
	now := c.now()
	today := now.Format("2006-01-02")

	c.mu.Lock()
	if c.lastRunDate == today {
		c.mu.Unlock()
		return false
	}
	due := time.Date(now.Year(), now.Month(), now.Day(), c.config.Hour, c.config.Minute, 0, 0, now.Location())
	if now.Before(due) {
		c.mu.Unlock()
		return false
	}
	c.lastRunDate = today
	c.mu.Unlock()

	runCtx := ctx
	if c.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.config.RunTimeout)
		defer cancel()
	}

	c.logger.Info("Triggering daily ingestion run")
	runID, err := c.runner.RunAll(runCtx, TriggerScheduled)
	switch {
	case errors.Is(err, shared.ErrAlreadyRunning):
		c.logger.Warn("Daily ingestion skipped, a run is already in progress")
	case err != nil:
		c.logger.Error("Daily ingestion run failed", zap.String("run_id", runID), zap.Error(err))
	default:
		c.logger.Info("Daily ingestion run finished", zap.String("run_id", runID))
	}
	return true
}
