package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mailcenter/billing/internal/bootstrap"
	"github.com/mailcenter/billing/internal/infrastructure/config"
	"github.com/mailcenter/billing/internal/infrastructure/event"
	"github.com/mailcenter/billing/internal/infrastructure/jobs"
	"github.com/mailcenter/billing/internal/infrastructure/logger"
)

var version = "dev"

// The worker consumes the billing queue: scheduled runs, payment retries
// and notification delivery.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic("Failed to load .env: " + err.Error())
	}
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.Must(logger.OptionsFrom(cfg, "billing-worker"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := event.NewLogNotifier(log)
	c, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{
		Service:  "billing-worker",
		Version:  version,
		NodeID:   2,
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

	srv := jobs.NewServer(cfg.Redis, cfg.Jobs, log)
	mux := jobs.NewServeMux(jobs.NewProcessor(c.Executor, c.Settlements, notifier, log))

	log.Info("Worker starting",
		zap.String("redis", cfg.Redis.Addr()),
		zap.Int("concurrency", cfg.Jobs.Concurrency),
	)
	if err := srv.Start(mux); err != nil {
		log.Fatal("Failed to start worker", zap.Error(err))
	}

	<-ctx.Done()
	log.Info("Shutting down worker...")
	srv.Shutdown()
	log.Info("Worker exited")
}
