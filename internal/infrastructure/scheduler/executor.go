package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/directory"
)

// StorageCharger writes daily storage charges
type StorageCharger interface {
	GenerateDailyStorageCharges(ctx context.Context, tenantID *uuid.UUID, day time.Time) (*billing.StorageRunResult, error)
}

// InvoiceRunner runs the invoice sweeps
type InvoiceRunner interface {
	MarkOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time) (*billing.OverdueResult, error)
	RunScheduled(ctx context.Context, now time.Time) (*billing.ScheduleRunResult, error)
}

// AutoPayRunner collects auto-pay invoices
type AutoPayRunner interface {
	Run(ctx context.Context, tenantID uuid.UUID, today time.Time) (*billing.AutoPayResult, error)
}

// BillingExecutor maps billing jobs onto the application services
type BillingExecutor struct {
	charges  StorageCharger
	invoices InvoiceRunner
	autopay  AutoPayRunner
	logger   *zap.Logger
}

// NewBillingExecutor creates a BillingExecutor
func NewBillingExecutor(charges StorageCharger, invoices InvoiceRunner, autopay AutoPayRunner, logger *zap.Logger) *BillingExecutor {
	return &BillingExecutor{charges: charges, invoices: invoices, autopay: autopay, logger: logger}
}

// Execute implements JobExecutor. Per-item failures inside a sweep are
// logged; only a failed sweep fails the job.
func (e *BillingExecutor) Execute(ctx context.Context, job *Job) error {
	if job.Kind.TenantScoped() && job.TenantID == nil {
		return fmt.Errorf("%s job requires a tenant", job.Kind)
	}

	switch job.Kind {
	case JobDailyStorage:
		res, err := e.charges.GenerateDailyStorageCharges(ctx, job.TenantID, job.RunAt)
		if err != nil {
			return err
		}
		e.logger.Info("Daily storage charges generated",
			zap.String("day", res.Day),
			zap.Int("created", res.Created),
			zap.Int("skipped", res.Skipped),
			zap.Int("errors", len(res.Errors)),
		)
	case JobMarkOverdue:
		res, err := e.invoices.MarkOverdue(ctx, *job.TenantID, job.RunAt)
		if err != nil {
			return err
		}
		if res.Marked > 0 || len(res.Errors) > 0 {
			e.logger.Info("Invoices marked overdue",
				zap.String("tenant_id", job.TenantID.String()),
				zap.Int("marked", res.Marked),
				zap.Int("errors", len(res.Errors)),
			)
		}
	case JobInvoiceSchedules:
		res, err := e.invoices.RunScheduled(ctx, job.RunAt)
		if err != nil {
			return err
		}
		e.logger.Info("Invoice schedules run",
			zap.Int("schedules", res.Schedules),
			zap.Int("invoices", res.Invoices),
			zap.Int("errors", len(res.Errors)),
		)
	case JobAutoPay:
		res, err := e.autopay.Run(ctx, *job.TenantID, job.RunAt)
		if err != nil {
			return err
		}
		if res.Processed > 0 {
			e.logger.Info("Auto-pay run",
				zap.String("tenant_id", job.TenantID.String()),
				zap.Int("processed", res.Processed),
				zap.Int("succeeded", res.Succeeded),
				zap.Int("failed", res.Failed),
			)
		}
	default:
		return ErrUnknownJobKind
	}
	return nil
}

// TenantLister lists the tenants the daily run covers
type TenantLister interface {
	ListActiveTenants(ctx context.Context) ([]directory.Tenant, error)
}
