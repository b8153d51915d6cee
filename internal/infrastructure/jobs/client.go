package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/mailcenter/billing/internal/infrastructure/config"
	"github.com/mailcenter/billing/internal/infrastructure/event"
	"github.com/mailcenter/billing/internal/infrastructure/scheduler"
)

// Enqueuer is the part of *asynq.Client the billing code uses
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RedisOpt builds the asynq connection from the Redis settings
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewClient creates an asynq client
func NewClient(cfg config.RedisConfig) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// enqueue treats a task already queued under the same ID as success
func enqueue(ctx context.Context, q Enqueuer, task *asynq.Task) (bool, error) {
	_, err := q.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	return true, nil
}

// QueueExecutor hands scheduler jobs to the worker process instead of
// running them in the server
type QueueExecutor struct {
	queue  Enqueuer
	logger *zap.Logger
}

// NewQueueExecutor creates a QueueExecutor
func NewQueueExecutor(queue Enqueuer, logger *zap.Logger) *QueueExecutor {
	return &QueueExecutor{queue: queue, logger: logger.Named("jobs")}
}

// Execute implements scheduler.JobExecutor
func (e *QueueExecutor) Execute(ctx context.Context, job *scheduler.Job) error {
	task, err := NewBillingJobTask(job)
	if err != nil {
		return err
	}
	queued, err := enqueue(ctx, e.queue, task)
	if err != nil {
		return err
	}
	if !queued {
		e.logger.Debug("Billing job already queued",
			zap.String("kind", string(job.Kind)),
			zap.String("job_id", job.ID.String()),
		)
	}
	return nil
}

// QueueNotifier delivers notifications through the worker
type QueueNotifier struct {
	queue Enqueuer
}

// NewQueueNotifier creates a QueueNotifier
func NewQueueNotifier(queue Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

// Notify implements event.Notifier
func (n *QueueNotifier) Notify(ctx context.Context, msg event.Notification) error {
	task, err := NewNotifyTask(msg)
	if err != nil {
		return err
	}
	_, err = enqueue(ctx, n.queue, task)
	return err
}

// RetryQueue schedules settlement retries in the worker
type RetryQueue struct {
	queue Enqueuer
}

// NewRetryQueue creates a RetryQueue
func NewRetryQueue(queue Enqueuer) *RetryQueue {
	return &RetryQueue{queue: queue}
}

// EnqueueRetry queues a capture retry for a failed record
func (r *RetryQueue) EnqueueRetry(ctx context.Context, tenantID, recordID uuid.UUID) error {
	task, err := NewRetryTask(tenantID, recordID)
	if err != nil {
		return err
	}
	_, err = enqueue(ctx, r.queue, task)
	return err
}

var (
	_ scheduler.JobExecutor = (*QueueExecutor)(nil)
	_ event.Notifier        = (*QueueNotifier)(nil)
)
