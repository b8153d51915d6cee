package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailcenter/billing/internal/application/billing"
)

type fakeServices struct {
	storageTenant *uuid.UUID
	storageDay    time.Time
	overdueTenant uuid.UUID
	scheduledAt   time.Time
	autopayTenant uuid.UUID
	err           error
}

func (f *fakeServices) GenerateDailyStorageCharges(_ context.Context, tenantID *uuid.UUID, day time.Time) (*billing.StorageRunResult, error) {
	f.storageTenant, f.storageDay = tenantID, day
	return &billing.StorageRunResult{Day: day.Format("2006-01-02"), Created: 2}, f.err
}

func (f *fakeServices) MarkOverdue(_ context.Context, tenantID uuid.UUID, _ time.Time) (*billing.OverdueResult, error) {
	f.overdueTenant = tenantID
	return &billing.OverdueResult{Marked: 1}, f.err
}

func (f *fakeServices) RunScheduled(_ context.Context, now time.Time) (*billing.ScheduleRunResult, error) {
	f.scheduledAt = now
	return &billing.ScheduleRunResult{}, f.err
}

func (f *fakeServices) Run(_ context.Context, tenantID uuid.UUID, _ time.Time) (*billing.AutoPayResult, error) {
	f.autopayTenant = tenantID
	return &billing.AutoPayResult{Processed: 1, Succeeded: 1}, f.err
}

func TestBillingExecutor_DispatchesByKind(t *testing.T) {
	f := &fakeServices{}
	exec := NewBillingExecutor(f, f, f, zap.NewNop())
	ctx := context.Background()
	day := time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC)
	tenant := uuid.New()

	require.NoError(t, exec.Execute(ctx, NewJob(JobDailyStorage, nil, day, 0)))
	assert.Nil(t, f.storageTenant)
	assert.Equal(t, day, f.storageDay)

	require.NoError(t, exec.Execute(ctx, NewJob(JobMarkOverdue, &tenant, day, 0)))
	assert.Equal(t, tenant, f.overdueTenant)

	require.NoError(t, exec.Execute(ctx, NewJob(JobInvoiceSchedules, nil, day, 0)))
	assert.Equal(t, day, f.scheduledAt)

	require.NoError(t, exec.Execute(ctx, NewJob(JobAutoPay, &tenant, day, 0)))
	assert.Equal(t, tenant, f.autopayTenant)
}

func TestBillingExecutor_Errors(t *testing.T) {
	f := &fakeServices{err: errors.New("db down")}
	exec := NewBillingExecutor(f, f, f, zap.NewNop())
	ctx := context.Background()

	assert.EqualError(t, exec.Execute(ctx, NewJob(JobInvoiceSchedules, nil, time.Now(), 0)), "db down")
	assert.EqualError(t, exec.Execute(ctx, NewJob(JobAutoPay, nil, time.Now(), 0)), "autopay job requires a tenant")
	assert.ErrorIs(t, exec.Execute(ctx, NewJob("reports", nil, time.Now(), 0)), ErrUnknownJobKind)
}
