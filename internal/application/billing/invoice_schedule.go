package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/shared"
	"go.uber.org/zap"
)

// GetOrCreateSchedule returns the tenant's schedule, or one customer's when
// customerID is set, creating the monthly default on first access
func (s *InvoiceService) GetOrCreateSchedule(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) (*invoicing.Schedule, error) {
	schedule, err := s.schedules.Find(ctx, tenantID, customerID)
	if err == nil {
		return schedule, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to load invoice schedule: %w", err)
	}
	schedule = invoicing.NewDefaultSchedule(tenantID, customerID, s.opts.Now())
	if err := s.schedules.Save(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to create invoice schedule: %w", err)
	}
	return schedule, nil
}

// UpdateSchedule changes a schedule and recomputes its next run
func (s *InvoiceService) UpdateSchedule(ctx context.Context, tenantID, scheduleID uuid.UUID, update invoicing.ScheduleUpdate) (*invoicing.Schedule, error) {
	schedule, err := s.schedules.FindByID(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	if err := schedule.Apply(update, s.opts.Now()); err != nil {
		return nil, err
	}
	if err := s.schedules.Save(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to save invoice schedule: %w", err)
	}
	return schedule, nil
}

// ScheduleRunResult summarizes one pass over due schedules
type ScheduleRunResult struct {
	Schedules int          `json:"schedules"`
	Invoices  int          `json:"invoices"`
	Errors    []BatchError `json:"errors,omitempty"`
}

// RunScheduled generates invoices for every schedule due at now. A
// tenant-level schedule skips customers that have their own schedule.
// Invoices are sent right away when the tenant enabled auto-invoicing.
func (s *InvoiceService) RunScheduled(ctx context.Context, now time.Time) (*ScheduleRunResult, error) {
	due, err := s.schedules.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due invoice schedules: %w", err)
	}

	result := &ScheduleRunResult{}
	for i := range due {
		schedule := &due[i]
		result.Schedules++

		autoSend := false
		if cfg, err := optional(s.terms.FindConfig(ctx, schedule.TenantID)); err != nil {
			s.logger.Warn("Billing config lookup failed, invoices stay draft",
				zap.String("tenant_id", schedule.TenantID.String()),
				zap.Error(err),
			)
		} else if cfg != nil {
			autoSend = cfg.AutoInvoice
		}

		periodEnd := now
		if schedule.CustomerID != nil {
			res, err := s.GenerateForCustomer(ctx, GenerateInvoiceRequest{
				TenantID:   schedule.TenantID,
				CustomerID: *schedule.CustomerID,
				PeriodEnd:  &periodEnd,
				AutoSend:   autoSend,
			})
			if err != nil {
				result.Errors = append(result.Errors, batchError("schedule "+schedule.ID.String(), err))
			} else if res != nil {
				result.Invoices++
			}
		} else {
			opts := BatchOptions{PeriodEnd: &periodEnd, AutoSend: autoSend}
			own, err := s.schedules.ListCustomerSchedules(ctx, schedule.TenantID)
			if err != nil {
				result.Errors = append(result.Errors, batchError("schedule "+schedule.ID.String(), err))
				continue
			}
			for _, cs := range own {
				opts.ExcludeCustomerIDs = append(opts.ExcludeCustomerIDs, *cs.CustomerID)
			}
			batch, err := s.GenerateBatch(ctx, schedule.TenantID, opts)
			if err != nil {
				result.Errors = append(result.Errors, batchError("schedule "+schedule.ID.String(), err))
				continue
			}
			result.Invoices += batch.Count
			result.Errors = append(result.Errors, batch.Errors...)
		}

		schedule.Advance(now)
		if err := s.schedules.Save(ctx, schedule); err != nil {
			result.Errors = append(result.Errors, batchError("schedule "+schedule.ID.String(), err))
		}
	}
	return result, nil
}
