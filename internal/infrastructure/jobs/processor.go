package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/config"
	"github.com/mailcenter/billing/internal/infrastructure/event"
	"github.com/mailcenter/billing/internal/infrastructure/scheduler"
)

// Retrier re-runs failed captures
type Retrier interface {
	RetryFailed(ctx context.Context, tenantID, recordID uuid.UUID) (*billing.SettleResult, error)
}

// Processor handles billing tasks in the worker
type Processor struct {
	executor scheduler.JobExecutor
	retrier  Retrier
	notifier event.Notifier
	logger   *zap.Logger
}

// NewProcessor creates a Processor. notifier performs the final delivery.
func NewProcessor(executor scheduler.JobExecutor, retrier Retrier, notifier event.Notifier, logger *zap.Logger) *Processor {
	return &Processor{executor: executor, retrier: retrier, notifier: notifier, logger: logger.Named("worker")}
}

// Register adds the billing handlers to mux
func (p *Processor) Register(mux *asynq.ServeMux) {
	for kind, taskType := range kindToType {
		mux.HandleFunc(taskType, p.billingJobHandler(kind))
	}
	mux.HandleFunc(TypeRetryFailed, p.HandleRetry)
	mux.HandleFunc(TypeNotify, p.HandleNotify)
}

func (p *Processor) billingJobHandler(kind scheduler.JobKind) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload BillingJobPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal %s payload: %v: %w", kind, err, asynq.SkipRetry)
		}
		job := &scheduler.Job{ID: payload.JobID, Kind: kind, TenantID: payload.TenantID, RunAt: payload.RunAt}
		if err := p.executor.Execute(ctx, job); err != nil {
			if errors.Is(err, scheduler.ErrUnknownJobKind) {
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return err
		}
		return nil
	}
}

// HandleRetry runs a settlement retry. Business rejections are final.
func (p *Processor) HandleRetry(ctx context.Context, t *asynq.Task) error {
	var payload RetryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal retry payload: %v: %w", err, asynq.SkipRetry)
	}
	res, err := p.retrier.RetryFailed(ctx, payload.TenantID, payload.RecordID)
	if err != nil {
		if _, ok := shared.AsDomainError(err); ok {
			p.logger.Warn("Settlement retry rejected",
				zap.String("record_id", payload.RecordID.String()),
				zap.Error(err),
			)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	p.logger.Info("Settlement retry finished",
		zap.String("record_id", payload.RecordID.String()),
		zap.String("status", string(res.Status)),
	)
	return nil
}

// HandleNotify delivers a customer notification
func (p *Processor) HandleNotify(ctx context.Context, t *asynq.Task) error {
	var n event.Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("failed to unmarshal notification: %v: %w", err, asynq.SkipRetry)
	}
	return p.notifier.Notify(ctx, n)
}

// NewServer creates the asynq worker server
func NewServer(redis config.RedisConfig, cfg config.JobsConfig, logger *zap.Logger) *asynq.Server {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	l := logger.Named("asynq")
	return asynq.NewServer(RedisOpt(redis), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
			QueueLow:      1,
		},
		Logger: &asynqLogger{l: l.Sugar()},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			l.Error("Task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
}

// NewServeMux builds the mux with every billing handler registered
func NewServeMux(p *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	p.Register(mux)
	return mux
}

// asynqLogger adapts zap to asynq.Logger
type asynqLogger struct {
	l *zap.SugaredLogger
}

func (a *asynqLogger) Debug(args ...any) { a.l.Debug(args...) }
func (a *asynqLogger) Info(args ...any)  { a.l.Info(args...) }
func (a *asynqLogger) Warn(args ...any)  { a.l.Warn(args...) }
func (a *asynqLogger) Error(args ...any) { a.l.Error(args...) }
func (a *asynqLogger) Fatal(args ...any) { a.l.Fatal(args...) }
