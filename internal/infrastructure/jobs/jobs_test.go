package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/infrastructure/event"
	"github.com/mailcenter/billing/internal/infrastructure/scheduler"
)

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestNewBillingJobTask(t *testing.T) {
	tenant := uuid.New()
	runAt := time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC)
	job := scheduler.NewJob(scheduler.JobAutoPay, &tenant, runAt, 0)

	task, err := NewBillingJobTask(job)
	require.NoError(t, err)
	assert.Equal(t, TypeAutoPay, task.Type())

	var payload BillingJobPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, job.ID, payload.JobID)
	assert.Equal(t, tenant, *payload.TenantID)
	assert.True(t, runAt.Equal(payload.RunAt))

	_, err = NewBillingJobTask(scheduler.NewJob("reports", nil, runAt, 0))
	assert.ErrorIs(t, err, scheduler.ErrUnknownJobKind)
}

func TestQueueExecutor(t *testing.T) {
	q := &fakeQueue{}
	exec := NewQueueExecutor(q, zap.NewNop())
	job := scheduler.NewJob(scheduler.JobDailyStorage, nil, time.Now(), 0)

	require.NoError(t, exec.Execute(context.Background(), job))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TypeDailyStorage, q.tasks[0].Type())

	q.err = asynq.ErrTaskIDConflict
	assert.NoError(t, exec.Execute(context.Background(), job))

	q.err = errors.New("redis down")
	err := exec.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to enqueue billing:storage:daily")
}

func TestQueueNotifierAndRetryQueue(t *testing.T) {
	q := &fakeQueue{}
	require.NoError(t, NewQueueNotifier(q).Notify(context.Background(), event.Notification{
		Kind: event.KindInvoiceSent, EventID: uuid.New(), Subject: "Invoice INV-1",
	}))
	require.NoError(t, NewRetryQueue(q).EnqueueRetry(context.Background(), uuid.New(), uuid.New()))

	require.Len(t, q.tasks, 2)
	assert.Equal(t, TypeNotify, q.tasks[0].Type())
	assert.Equal(t, TypeRetryFailed, q.tasks[1].Type())
}

type recordingExecutor struct {
	jobs []*scheduler.Job
	err  error
}

func (e *recordingExecutor) Execute(_ context.Context, job *scheduler.Job) error {
	e.jobs = append(e.jobs, job)
	return e.err
}

type fakeRetrier struct {
	err error
}

func (r *fakeRetrier) RetryFailed(_ context.Context, _, recordID uuid.UUID) (*billing.SettleResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &billing.SettleResult{RecordID: recordID, Status: settlement.RecordStatusPaid}, nil
}

type collectingNotifier struct {
	got []event.Notification
}

func (n *collectingNotifier) Notify(_ context.Context, msg event.Notification) error {
	n.got = append(n.got, msg)
	return nil
}

func TestProcessor_BillingJobs(t *testing.T) {
	exec := &recordingExecutor{}
	p := NewProcessor(exec, &fakeRetrier{}, &collectingNotifier{}, zap.NewNop())
	tenant := uuid.New()

	task, err := NewBillingJobTask(scheduler.NewJob(scheduler.JobMarkOverdue, &tenant, time.Now(), 0))
	require.NoError(t, err)
	require.NoError(t, p.billingJobHandler(scheduler.JobMarkOverdue)(context.Background(), task))

	require.Len(t, exec.jobs, 1)
	assert.Equal(t, scheduler.JobMarkOverdue, exec.jobs[0].Kind)
	assert.Equal(t, tenant, *exec.jobs[0].TenantID)

	bad := asynq.NewTask(TypeMarkOverdue, []byte("{"))
	assert.ErrorIs(t, p.billingJobHandler(scheduler.JobMarkOverdue)(context.Background(), bad), asynq.SkipRetry)
}

func TestProcessor_HandleRetry(t *testing.T) {
	task, err := NewRetryTask(uuid.New(), uuid.New())
	require.NoError(t, err)

	ok := NewProcessor(&recordingExecutor{}, &fakeRetrier{}, &collectingNotifier{}, zap.NewNop())
	assert.NoError(t, ok.HandleRetry(context.Background(), task))

	limited := NewProcessor(&recordingExecutor{}, &fakeRetrier{err: settlement.ErrRetryLimitExceeded}, &collectingNotifier{}, zap.NewNop())
	err = limited.HandleRetry(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	transient := NewProcessor(&recordingExecutor{}, &fakeRetrier{err: errors.New("db down")}, &collectingNotifier{}, zap.NewNop())
	err = transient.HandleRetry(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessor_HandleNotify(t *testing.T) {
	n := &collectingNotifier{}
	p := NewProcessor(&recordingExecutor{}, &fakeRetrier{}, n, zap.NewNop())
	msg := event.Notification{Kind: event.KindPaymentFailed, CustomerID: uuid.New(), Body: "A charge of $3.50 could not be collected"}
	task, err := NewNotifyTask(msg)
	require.NoError(t, err)

	require.NoError(t, p.HandleNotify(context.Background(), task))
	require.Len(t, n.got, 1)
	assert.Equal(t, msg.Body, n.got[0].Body)
}
