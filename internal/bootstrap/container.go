// Package bootstrap wires the billing services from configuration. The API
// server and the queue worker share one Container so both processes settle
// and invoice through identical collaborators.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/cache"
	"github.com/mailcenter/billing/internal/infrastructure/config"
	"github.com/mailcenter/billing/internal/infrastructure/event"
	"github.com/mailcenter/billing/internal/infrastructure/logger"
	"github.com/mailcenter/billing/internal/infrastructure/migration"
	"github.com/mailcenter/billing/internal/infrastructure/payment"
	"github.com/mailcenter/billing/internal/infrastructure/persistence"
	"github.com/mailcenter/billing/internal/infrastructure/scheduler"
	"github.com/mailcenter/billing/internal/infrastructure/telemetry"
)

const (
	// handled events are remembered for a day, which covers redelivery
	eventDedupTTL = 24 * time.Hour
	shutdownGrace = 10 * time.Second
)

// Options select the process-specific pieces of the container
type Options struct {
	// Service names the process in logs, traces and metrics
	Service string
	Version string
	// NodeID distinguishes processes minting payment references
	NodeID int64
	// Notifier delivers customer notifications. Nil logs them.
	Notifier event.Notifier
}

// Container holds the wired billing stack of one process
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	// ServiceName is the telemetry service name of the process
	ServiceName string

	Database  *persistence.Database
	Redis     *redis.Client
	Directory *persistence.GormDirectory
	Events    *event.InMemoryEventBus
	Claims    shared.IdempotencyStore
	Metrics   *telemetry.BillingMetrics
	Tracer    *telemetry.TracerProvider
	Meter     *telemetry.MeterProvider

	Pricing     *billing.PricingService
	Charges     *billing.ChargeService
	Settlements *billing.SettlementService
	Invoices    *billing.InvoiceService
	AutoPay     *billing.AutoPayService
	Executor    *scheduler.BillingExecutor

	closers []func(context.Context) error
}

// New connects to the database and Redis and wires every billing service.
// Close releases what New acquired, in reverse order.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (c *Container, err error) {
	c = &Container{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	if err = c.initTelemetry(ctx, opts); err != nil {
		return nil, err
	}
	if err = c.initDatabase(); err != nil {
		return nil, err
	}

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	c.onClose(func(context.Context) error { return c.Redis.Close() })

	c.Claims, err = cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("idempotency store: %w", err)
	}
	c.onClose(func(context.Context) error { return c.Claims.Close() })

	c.Metrics, err = telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:           c.Meter.Meter("mailcenter.billing"),
		Logger:          log,
		BalanceProvider: telemetry.NewGormBalanceMetricsProvider(c.Database.DB),
	})
	if err != nil {
		return nil, fmt.Errorf("billing metrics: %w", err)
	}
	if c.Meter.IsEnabled() {
		c.Metrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	}
	c.onClose(func(context.Context) error { c.Metrics.Stop(); return nil })

	c.initEvents(opts.Notifier)

	if err = c.initServices(opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initTelemetry(ctx context.Context, opts Options) error {
	tc := c.Config.Telemetry
	serviceName := tc.ServiceName
	if serviceName == "" {
		serviceName = opts.Service
	}
	c.ServiceName = serviceName

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       serviceName,
		ServiceVersion:    opts.Version,
		Insecure:          tc.Insecure,
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("tracer provider: %w", err)
	}
	c.Tracer = tp
	c.onClose(tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       serviceName,
		ServiceVersion:    opts.Version,
		Insecure:          tc.Insecure,
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("meter provider: %w", err)
	}
	c.Meter = mp
	c.onClose(mp.Shutdown)
	return nil
}

func (c *Container) initDatabase() error {
	db, err := persistence.NewDatabase(&c.Config.Database, c.Logger, logger.GormLevel(c.Config.Log.Level))
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	c.Database = db
	c.onClose(func(context.Context) error { return db.Close() })

	if c.Config.Telemetry.Enabled && c.Config.Telemetry.DBTraceEnabled {
		tracing := telemetry.DefaultDBTracingConfig()
		tracing.Enabled = true
		tracing.LogFullSQL = c.Config.App.Env == "development"
		if err := telemetry.NewDBTracingPlugin(tracing, c.Logger).Register(db.DB); err != nil {
			return fmt.Errorf("database tracing: %w", err)
		}
	}

	if c.Config.Database.AutoMigrate {
		if err := Migrate(db, c.Logger); err != nil {
			return err
		}
	}
	c.Directory = persistence.NewGormDirectory(db.DB)
	return nil
}

// Migrate applies pending schema migrations
func Migrate(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	// closing the migrator would close the shared pool
	if err := m.Up(); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (c *Container) initEvents(notifier event.Notifier) {
	if notifier == nil {
		notifier = event.NewLogNotifier(c.Logger)
	}
	bus := event.NewInMemoryEventBus(c.Logger)
	notifications := event.NewNotificationHandler(notifier, language.AmericanEnglish)
	bus.Subscribe(event.NewIdempotentHandler("notifications", notifications, c.Claims, eventDedupTTL, c.Logger))
	bus.Subscribe(event.NewAuditHandler(c.Logger))
	c.Events = bus
	c.onClose(bus.Stop)
}

func (c *Container) initServices(opts Options) error {
	cfg := c.Config
	db := c.Database.DB
	log := c.Logger

	gateway, err := payment.NewSimulatedGateway(payment.GatewayConfig{
		NodeID:     opts.NodeID,
		DeclineAll: cfg.Billing.SimulatedDeclineAll,
	}, log)
	if err != nil {
		return fmt.Errorf("payment gateway: %w", err)
	}
	capture := payment.WithRateLimit(gateway, payment.GatewayConfig{
		RatePerSecond: cfg.Billing.CaptureRatePerSec,
		Burst:         cfg.Billing.CaptureBurst,
		WaitTimeout:   cfg.Billing.CaptureTimeout,
	})

	scope := persistence.NewGormTransactionScope(db)
	charges := persistence.NewGormChargeRepository(db)
	records := persistence.NewGormSettlementRecordRepository(db)
	terms := persistence.NewGormTermsRepository(db).WithFallbackConfig(FallbackTerms(cfg.Billing))
	methods := persistence.NewGormPaymentMethodRepository(db)
	invoices := persistence.NewGormInvoiceRepository(db)

	c.Pricing = billing.NewPricingService(persistence.NewGormPricingRepository(db), c.Directory, log)

	settleOpts := billing.DefaultSettlementOptions()
	if cfg.Billing.CaptureTimeout > 0 {
		settleOpts.CaptureTimeout = cfg.Billing.CaptureTimeout
	}
	settleOpts.DefaultCreditLimit = cfg.Billing.DefaultCreditLimit
	c.Settlements = billing.NewSettlementService(billing.SettlementServiceDeps{
		Scope:     scope,
		Records:   records,
		Charges:   charges,
		Balances:  persistence.NewGormBalanceRepository(db),
		Terms:     terms,
		Methods:   methods,
		Directory: c.Directory,
		Capture:   capture,
		Claims:    c.Claims,
		Events:    c.Events,
		Metrics:   c.Metrics,
		Logger:    log,
	}, settleOpts)

	c.Charges = billing.NewChargeService(billing.ChargeServiceDeps{
		Pricer:    c.Pricing,
		Charges:   charges,
		Usage:     persistence.NewGormUsageRepository(db),
		Terms:     terms,
		Directory: c.Directory,
		Settler:   c.Settlements,
		Scope:     scope,
		Events:    c.Events,
		Metrics:   c.Metrics,
		Logger:    log,
	})

	c.Invoices = billing.NewInvoiceService(billing.InvoiceServiceDeps{
		Scope:     scope,
		Invoices:  invoices,
		Records:   records,
		Schedules: persistence.NewGormInvoiceScheduleRepository(db),
		Terms:     terms,
		Events:    c.Events,
		Metrics:   c.Metrics,
		Logger:    log,
	}, billing.InvoiceOptions{DefaultCreditLimit: cfg.Billing.DefaultCreditLimit})

	c.AutoPay = billing.NewAutoPayService(billing.AutoPayServiceDeps{
		Terms:     terms,
		Invoices:  invoices,
		Methods:   methods,
		Directory: c.Directory,
		Capture:   capture,
		Payer:     c.Invoices,
		Events:    c.Events,
		Metrics:   c.Metrics,
		Logger:    log,
	}, settleOpts.CaptureTimeout)

	c.Executor = scheduler.NewBillingExecutor(c.Charges, c.Invoices, c.AutoPay, log)
	return nil
}

// FallbackTerms turns the configured billing defaults into the settlement
// config of tenants that never saved their own
func FallbackTerms(cfg config.BillingConfig) settlement.BillingConfig {
	fallback := settlement.BillingConfig{DefaultMode: settlement.Mode(cfg.DefaultMode)}
	if !fallback.DefaultMode.IsValid() {
		fallback.DefaultMode = settlement.ModeImmediate
	}
	if cfg.PaymentWindowDays > 0 {
		days := cfg.PaymentWindowDays
		fallback.PaymentWindowDays = &days
	}
	return fallback
}

// PingDatabase reports whether the database accepts connections
func (c *Container) PingDatabase(ctx context.Context) error {
	sqlDB, err := c.Database.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// PingRedis reports whether Redis answers
func (c *Container) PingRedis(ctx context.Context) error {
	return c.Redis.Ping(ctx).Err()
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse acquisition order
func (c *Container) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
