package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StatusTotal aggregates invoices in one status
type StatusTotal struct {
	Status Status
	Count  int64
	Amount decimal.Decimal
}

// Summary is the per-status invoice overview for a tenant
type Summary struct {
	TotalDraft    int64           `json:"total_draft"`
	TotalSent     int64           `json:"total_sent"`
	TotalPaid     int64           `json:"total_paid"`
	TotalOverdue  int64           `json:"total_overdue"`
	AmountDraft   decimal.Decimal `json:"amount_draft"`
	AmountSent    decimal.Decimal `json:"amount_sent"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	AmountOverdue decimal.Decimal `json:"amount_overdue"`
}

// NewSummary folds status totals into a Summary
func NewSummary(totals []StatusTotal) Summary {
	s := Summary{
		AmountDraft:   decimal.Zero,
		AmountSent:    decimal.Zero,
		AmountPaid:    decimal.Zero,
		AmountOverdue: decimal.Zero,
	}
	for _, t := range totals {
		switch t.Status {
		case StatusDraft:
			s.TotalDraft, s.AmountDraft = t.Count, t.Amount
		case StatusSent:
			s.TotalSent, s.AmountSent = t.Count, t.Amount
		case StatusPaid:
			s.TotalPaid, s.AmountPaid = t.Count, t.Amount
		case StatusOverdue:
			s.TotalOverdue, s.AmountOverdue = t.Count, t.Amount
		}
	}
	return s
}

// Filter narrows invoice listings
type Filter struct {
	shared.Filter
	CustomerID *uuid.UUID
	Statuses   []Status
}

// Repository persists invoices and their line items
type Repository interface {
	// FindByID returns the invoice with its line items or shared.ErrNotFound
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate loads the invoice and line items under a row lock
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// Create inserts the invoice and its line items
	Create(ctx context.Context, inv *Invoice) error

	// Save updates invoice header fields with an optimistic version check
	Save(ctx context.Context, inv *Invoice) error

	// CountCreatedSince counts a tenant's invoices created at or after since
	CountCreatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error)

	// ListByCustomerAndStatus returns a customer's invoices in the given statuses
	ListByCustomerAndStatus(ctx context.Context, tenantID, customerID uuid.UUID, statuses ...Status) ([]Invoice, error)

	// ListPastDue returns sent or partially paid invoices due before now
	ListPastDue(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]Invoice, error)

	// SummarizeByStatus counts invoices and sums their amounts per status
	SummarizeByStatus(ctx context.Context, tenantID uuid.UUID) ([]StatusTotal, error)

	// List returns a page of invoices (without line items) and the total count
	List(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]Invoice, int64, error)
}

// ScheduleRepository persists invoice schedules
type ScheduleRepository interface {
	// Find returns the schedule for the tenant, or for one customer when
	// customerID is set; shared.ErrNotFound when none exists
	Find(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) (*Schedule, error)

	// FindByID returns a schedule by ID
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Schedule, error)

	// Save inserts or updates a schedule
	Save(ctx context.Context, s *Schedule) error

	// ListDue returns active schedules whose next run is at or before now
	ListDue(ctx context.Context, now time.Time) ([]Schedule, error)

	// ListCustomerSchedules returns the active customer-level schedules of a tenant
	ListCustomerSchedules(ctx context.Context, tenantID uuid.UUID) ([]Schedule, error)
}
