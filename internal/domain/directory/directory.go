// Package directory exposes the billing-relevant slice of tenants,
// customers and held packages. Those records are owned by the intake
// modules; billing only reads them.
package directory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// StatusActive marks active tenants and customers
const StatusActive = "active"

// Package statuses that still occupy shelf space
var HeldPackageStatuses = []string{"checked_in", "notified", "ready"}

// Tenant is a mail-center location's billing settings
type Tenant struct {
	ID               uuid.UUID
	Name             string
	Status           string
	ReceivingFeeRate *decimal.Decimal
	StorageRate      *decimal.Decimal
	StorageFreeDays  int
}

// Rates returns the tenant's legacy rate table
func (t *Tenant) Rates() pricing.TenantRates {
	return pricing.TenantRates{
		ReceivingFeeRate: t.ReceivingFeeRate,
		StorageRate:      t.StorageRate,
	}
}

// StorageCutoff is the check-in time before which a package on the shelf
// at day starts accruing storage
func (t *Tenant) StorageCutoff(day time.Time) time.Time {
	return day.AddDate(0, 0, -t.StorageFreeDays)
}

// Customer is a mailbox holder
type Customer struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	FirstName string
	LastName  string
	MailboxID string
	Segment   string
	Status    string
}

// DisplayName is "First Last"
func (c *Customer) DisplayName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// HeldPackage is a package still on the shelf
type HeldPackage struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	CustomerID     uuid.UUID
	MailboxID      string
	TrackingNumber string
	Status         string
	CheckedInAt    time.Time
}

// Label identifies the package in charge descriptions
func (p *HeldPackage) Label() string {
	if p.TrackingNumber != "" {
		return p.TrackingNumber
	}
	s := p.ID.String()
	return s[len(s)-6:]
}

// Directory reads tenants, customers and packages
type Directory interface {
	// FindTenant returns a tenant or shared.ErrNotFound
	FindTenant(ctx context.Context, tenantID uuid.UUID) (*Tenant, error)

	// ListActiveTenants returns all active tenants
	ListActiveTenants(ctx context.Context) ([]Tenant, error)

	// FindCustomer returns a customer or shared.ErrNotFound
	FindCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*Customer, error)

	// ListHeldPackages returns the tenant's packages still on the shelf
	// that were checked in before checkedInBefore
	ListHeldPackages(ctx context.Context, tenantID uuid.UUID, checkedInBefore time.Time) ([]HeldPackage, error)
}
