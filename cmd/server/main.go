package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/mailcenter/billing/internal/bootstrap"
	"github.com/mailcenter/billing/internal/infrastructure/auth"
	"github.com/mailcenter/billing/internal/infrastructure/config"
	"github.com/mailcenter/billing/internal/infrastructure/event"
	"github.com/mailcenter/billing/internal/infrastructure/jobs"
	"github.com/mailcenter/billing/internal/infrastructure/logger"
	"github.com/mailcenter/billing/internal/infrastructure/scheduler"
	"github.com/mailcenter/billing/internal/interfaces/http/handler"
	"github.com/mailcenter/billing/internal/interfaces/http/middleware"
	"github.com/mailcenter/billing/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Mail Center Billing API
//	@version		1.0
//	@description	Tenant billing for mail centers: charge ledger, settlement, invoicing and pricing.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic("Failed to load .env: " + err.Error())
	}
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.Must(logger.OptionsFrom(cfg, "billing-server"))
	defer func() { _ = log.Sync() }()

	log.Info("Starting billing server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// With the queue enabled, notifications, retries and scheduled runs are
	// handed to the worker process.
	var (
		queue    *asynq.Client
		notifier event.Notifier
	)
	if cfg.Jobs.Enabled {
		queue = jobs.NewClient(cfg.Redis)
		defer func() { _ = queue.Close() }()
		notifier = jobs.NewQueueNotifier(queue)
	}

	c, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{
		Service:  "billing-server",
		Version:  version,
		NodeID:   1,
		Notifier: notifier,
	})
	if err != nil {
		log.Fatal("Failed to initialize billing services", zap.Error(err))
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			log.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	var (
		submitter handler.JobSubmitter
		retries   handler.RetryEnqueuer
	)
	if queue != nil {
		retries = jobs.NewRetryQueue(queue)
	}
	if cfg.Scheduler.Enabled {
		sched, trigger, err := startScheduler(ctx, cfg, c, queue, log)
		if err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = trigger.Stop(stopCtx)
			_ = sched.Stop(stopCtx)
		}()
		submitter = sched
	}

	engine := newEngine(cfg, c, log)

	systemHandler := handler.NewSystemHandler(version, map[string]handler.ReadinessCheck{
		"database": c.PingDatabase,
		"redis":    c.PingRedis,
	}, submitter)

	billingRoutes := router.NewBillingGroup(router.BillingHandlers{
		Charges:     handler.NewChargeHandler(c.Charges),
		Settlements: handler.NewSettlementHandler(c.Settlements, retries),
		Invoices:    handler.NewInvoiceHandler(c.Invoices, c.AutoPay),
		Pricing:     handler.NewPricingHandler(c.Pricing),
		System:      systemHandler,
	}, billingMiddleware(cfg, c, log)...)

	router.NewRouter(engine).
		Register(billingRoutes).
		Probe("/health", systemHandler.Health).
		Probe("/ready", systemHandler.Ready).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

// newEngine builds the gin engine with the process-wide middleware chain
func newEngine(cfg *config.Config, c *bootstrap.Container, log *zap.Logger) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	engine.Use(
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Tracing(c.ServiceName, cfg.Telemetry.Enabled),
		middleware.HTTPMetrics(c.Meter.Meter("mailcenter.billing.http")),
		middleware.CORSWithConfig(cors),
		middleware.Secure(cfg.App.Env == "production"),
		middleware.BodyLimit(cfg.HTTP.MaxBodyBytes),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	)
	return engine
}

// billingMiddleware authenticates the tenant, then tags spans and applies
// the per-tenant rate limit
func billingMiddleware(cfg *config.Config, c *bootstrap.Container, log *zap.Logger) []gin.HandlerFunc {
	mw := []gin.HandlerFunc{
		middleware.Authenticate(middleware.AuthConfig{
			Verifier: auth.NewTokenVerifier(cfg.JWT),
			Required: cfg.JWT.Required,
			Tenants:  c.Directory,
			Logger:   log,
		}),
		middleware.SpanAttributes(),
	}
	if cfg.HTTP.RateLimitPerSec > 0 {
		mw = append(mw, middleware.RateLimit(middleware.NewKeyedLimiter(cfg.HTTP.RateLimitPerSec, cfg.HTTP.RateLimitBurst)))
	}
	return mw
}

// startScheduler runs the daily billing trigger. Jobs execute in-process,
// or on the worker when the queue is enabled.
func startScheduler(ctx context.Context, cfg *config.Config, c *bootstrap.Container, queue *asynq.Client, log *zap.Logger) (*scheduler.Scheduler, *scheduler.DailyTrigger, error) {
	triggerCfg, err := scheduler.DailyTriggerConfigFrom(cfg.Scheduler)
	if err != nil {
		return nil, nil, err
	}

	var executor scheduler.JobExecutor = c.Executor
	if queue != nil {
		executor = jobs.NewQueueExecutor(queue, log)
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerConfigFrom(cfg.Scheduler), executor, log)
	if err := sched.Start(ctx); err != nil {
		return nil, nil, err
	}
	trigger := scheduler.NewDailyTrigger(triggerCfg, sched, c.Directory, log)
	if err := trigger.Start(ctx); err != nil {
		_ = sched.Stop(context.Background())
		return nil, nil, err
	}
	return sched, trigger, nil
}
