package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind is one step of the daily billing run
type JobKind string

const (
	JobDailyStorage     JobKind = "daily_storage"
	JobMarkOverdue      JobKind = "mark_overdue"
	JobInvoiceSchedules JobKind = "invoice_schedules"
	JobAutoPay          JobKind = "autopay"
)

// ParseJobKind validates a job kind name
func ParseJobKind(s string) (JobKind, error) {
	switch k := JobKind(s); k {
	case JobDailyStorage, JobMarkOverdue, JobInvoiceSchedules, JobAutoPay:
		return k, nil
	}
	return "", ErrUnknownJobKind
}

// TenantScoped reports whether the kind runs once per tenant. The other
// kinds sweep every tenant in one pass.
func (k JobKind) TenantScoped() bool {
	return k == JobMarkOverdue || k == JobAutoPay
}

// Job is one billing job for a run day
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	TenantID    *uuid.UUID // nil means all tenants
	RunAt       time.Time
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a new job instance
func NewJob(kind JobKind, tenantID *uuid.UUID, runAt time.Time, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		TenantID:   tenantID,
		RunAt:      runAt,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	next := time.Now().Add(delay)
	j.NextRetryAt = &next
	j.Error = ""
}

func (j *Job) tenantLabel() string {
	if j.TenantID == nil {
		return "all"
	}
	return j.TenantID.String()
}
