package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/shared"
)

// ChargeFilter narrows charge listings
type ChargeFilter struct {
	shared.Filter
	CustomerID  *uuid.UUID
	ServiceType ServiceType
	Statuses    []ChargeStatus
	From        *time.Time
	To          *time.Time
}

// ChargeRepository persists charge entries
type ChargeRepository interface {
	// FindByID returns the entry or shared.ErrNotFound
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ChargeEntry, error)

	// FindByIDForUpdate loads the entry under a row lock (inside a transaction)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ChargeEntry, error)

	// Create inserts a new entry
	Create(ctx context.Context, entry *ChargeEntry) error

	// SaveStatus persists status and settlement linkage with an
	// optimistic version check; a stale version yields shared.ErrConcurrencyConflict
	SaveStatus(ctx context.Context, entry *ChargeEntry) error

	// TransitionMany moves the given entries from one status to another and
	// returns the number of rows changed. Entries in other statuses are untouched.
	TransitionMany(ctx context.Context, ids []uuid.UUID, from, to ChargeStatus) (int64, error)

	// ExistsForDay reports whether a recurring charge of serviceType already
	// exists for the package on the given day (YYYY-MM-DD)
	ExistsForDay(ctx context.Context, packageID uuid.UUID, serviceType ServiceType, day string) (bool, error)

	// List returns a page of entries and the total count
	List(ctx context.Context, tenantID uuid.UUID, filter ChargeFilter) ([]ChargeEntry, int64, error)
}

// UsageRepository persists usage meters and records
type UsageRepository interface {
	// FindMeter returns the tenant's meter for slug or shared.ErrNotFound
	FindMeter(ctx context.Context, tenantID uuid.UUID, slug MeterSlug) (*UsageMeter, error)

	// SaveMeter inserts or updates a meter
	SaveMeter(ctx context.Context, meter *UsageMeter) error

	// CreateRecord appends a usage record
	CreateRecord(ctx context.Context, record *UsageRecord) error

	// SumForPeriod totals a meter's usage for a customer in a YYYY-MM period
	SumForPeriod(ctx context.Context, meterID, customerID uuid.UUID, period string) (int64, error)
}
