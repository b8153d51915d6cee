// Package jobs moves billing work onto a Redis-backed asynq queue so the
// daily sweeps, charge retries and customer notifications run in the
// worker process.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/mailcenter/billing/internal/infrastructure/event"
	"github.com/mailcenter/billing/internal/infrastructure/scheduler"
)

// Task types
const (
	TypeDailyStorage     = "billing:storage:daily"
	TypeMarkOverdue      = "billing:invoice:mark_overdue"
	TypeInvoiceSchedules = "billing:invoice:schedules"
	TypeAutoPay          = "billing:autopay:run"
	TypeRetryFailed      = "billing:settlement:retry"
	TypeNotify           = "billing:notify:deliver"
)

// Queue names
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// BillingJobPayload carries one scheduled billing step
type BillingJobPayload struct {
	JobID    uuid.UUID  `json:"job_id"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
	RunAt    time.Time  `json:"run_at"`
}

// RetryPayload asks for another capture of a failed settlement record
type RetryPayload struct {
	TenantID uuid.UUID `json:"tenant_id"`
	RecordID uuid.UUID `json:"record_id"`
}

var kindToType = map[scheduler.JobKind]string{
	scheduler.JobDailyStorage:     TypeDailyStorage,
	scheduler.JobMarkOverdue:      TypeMarkOverdue,
	scheduler.JobInvoiceSchedules: TypeInvoiceSchedules,
	scheduler.JobAutoPay:          TypeAutoPay,
}

// TaskTypeFor returns the task type that runs a scheduler job kind
func TaskTypeFor(kind scheduler.JobKind) (string, bool) {
	t, ok := kindToType[kind]
	return t, ok
}

// NewBillingJobTask builds the task for a scheduler job. The task ID is
// derived from kind, tenant and UTC day so a day's step is queued once.
func NewBillingJobTask(job *scheduler.Job) (*asynq.Task, error) {
	taskType, ok := TaskTypeFor(job.Kind)
	if !ok {
		return nil, scheduler.ErrUnknownJobKind
	}
	payload, err := json.Marshal(BillingJobPayload{JobID: job.ID, TenantID: job.TenantID, RunAt: job.RunAt})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", job.Kind, err)
	}
	tenant := "all"
	if job.TenantID != nil {
		tenant = job.TenantID.String()
	}
	id := fmt.Sprintf("%s:%s:%s", job.Kind, tenant, job.RunAt.UTC().Format("20060102"))
	return asynq.NewTask(taskType, payload, asynq.TaskID(id), asynq.Queue(QueueDefault)), nil
}

// NewRetryTask builds a settlement retry task
func NewRetryTask(tenantID, recordID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(RetryPayload{TenantID: tenantID, RecordID: recordID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal retry payload: %w", err)
	}
	return asynq.NewTask(TypeRetryFailed, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(0)), nil
}

// NewNotifyTask builds a notification delivery task keyed by the event
// that produced it
func NewNotifyTask(n event.Notification) (*asynq.Task, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	opts := []asynq.Option{asynq.Queue(QueueLow), asynq.MaxRetry(5)}
	if n.EventID != uuid.Nil {
		opts = append(opts, asynq.TaskID("notify:"+n.Kind+":"+n.EventID.String()))
	}
	return asynq.NewTask(TypeNotify, payload, opts...), nil
}
