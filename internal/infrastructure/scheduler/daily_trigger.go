package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mailcenter/billing/internal/infrastructure/config"
)

// DailyTriggerConfig holds configuration for the daily trigger
type DailyTriggerConfig struct {
	// Hour and Minute of the daily run, in UTC
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultDailyTriggerConfig returns default trigger configuration
func DefaultDailyTriggerConfig() DailyTriggerConfig {
	return DailyTriggerConfig{
		Hour:          2,
		Minute:        0,
		CheckInterval: time.Minute,
	}
}

// DailyTriggerConfigFrom parses the HH:MM run time from application config
func DailyTriggerConfigFrom(cfg config.SchedulerConfig) (DailyTriggerConfig, error) {
	c := DefaultDailyTriggerConfig()
	if cfg.RunAt != "" {
		t, err := time.Parse("15:04", cfg.RunAt)
		if err != nil {
			return c, fmt.Errorf("%w: run_at %q must be HH:MM", ErrInvalidConfig, cfg.RunAt)
		}
		c.Hour, c.Minute = t.Hour(), t.Minute()
	}
	if cfg.CheckInterval > 0 {
		c.CheckInterval = cfg.CheckInterval
	}
	return c, nil
}

// DailyTrigger queues the daily billing run once per UTC day, on the
// first check at or after the configured time
type DailyTrigger struct {
	config    DailyTriggerConfig
	scheduler *Scheduler
	tenants   TenantLister
	logger    *zap.Logger
	now       func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewDailyTrigger creates a new daily trigger
func NewDailyTrigger(cfg DailyTriggerConfig, scheduler *Scheduler, tenants TenantLister, logger *zap.Logger) *DailyTrigger {
	return &DailyTrigger{
		config:    cfg,
		scheduler: scheduler,
		tenants:   tenants,
		logger:    logger.Named("trigger"),
		now:       time.Now,
	}
}

// Start starts the trigger loop
func (d *DailyTrigger) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = true
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.runLoop(ctx)

	d.logger.Info("Daily billing trigger started",
		zap.String("run_at", fmt.Sprintf("%02d:%02d", d.config.Hour, d.config.Minute)),
		zap.Duration("check_interval", d.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger loop
func (d *DailyTrigger) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false
	d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Daily billing trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DailyTrigger) runLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger queues the run if it is due and has not run today.
// Reports whether it queued.
func (d *DailyTrigger) checkAndTrigger(ctx context.Context) bool {
	now := d.now().UTC()
	today := now.Format("2006-01-02")
	due := time.Date(now.Year(), now.Month(), now.Day(), d.config.Hour, d.config.Minute, 0, 0, time.UTC)

	d.mu.Lock()
	if d.lastRunDate == today || now.Before(due) {
		d.mu.Unlock()
		return false
	}
	d.lastRunDate = today
	d.mu.Unlock()

	d.logger.Info("Triggering daily billing run", zap.String("day", today))
	if err := d.TriggerNow(ctx, now); err != nil {
		d.logger.Error("Failed to queue daily billing run", zap.Error(err))
	}
	return true
}

// TriggerNow queues a billing run for now regardless of the schedule
func (d *DailyTrigger) TriggerNow(ctx context.Context, now time.Time) error {
	tenants, err := d.tenants.ListActiveTenants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active tenants: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}
	d.logger.Info("Queueing billing jobs", zap.Int("tenant_count", len(ids)))
	return d.scheduler.ScheduleDailyRun(now, ids)
}
