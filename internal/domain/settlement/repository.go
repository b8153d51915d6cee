package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordRepository persists settlement records
type RecordRepository interface {
	// FindByID returns the record or shared.ErrNotFound
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Record, error)

	// FindByIDForUpdate loads the record under a row lock
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Record, error)

	// FindFallbackOf returns the deferred record created for a failed attempt
	FindFallbackOf(ctx context.Context, tenantID, failedID uuid.UUID) (*Record, error)

	// Create inserts a record
	Create(ctx context.Context, record *Record) error

	// Save updates a record with an optimistic version check
	Save(ctx context.Context, record *Record) error

	// ListPendingDeferred returns a customer's pending deferred records
	// created in [from, to], oldest first. from may be nil.
	ListPendingDeferred(ctx context.Context, tenantID, customerID uuid.UUID, from *time.Time, to time.Time) ([]Record, error)

	// ListByInvoice returns the records consumed by an invoice
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Record, error)

	// AttachInvoice flips pending deferred records to invoiced with the
	// invoice back-reference. Only rows still pending and unattached change.
	AttachInvoice(ctx context.Context, ids []uuid.UUID, invoiceID uuid.UUID) (int64, error)

	// DetachInvoice returns an invoice's invoiced records to pending
	DetachInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)

	// SettleInvoice marks an invoice's invoiced records paid
	SettleInvoice(ctx context.Context, invoiceID uuid.UUID, reference string, paidAt time.Time) (int64, error)

	// CustomersWithPendingDeferred lists distinct customers holding
	// pending deferred records
	CustomersWithPendingDeferred(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)

	// PendingDeferredSummary totals a customer's unpaid deferred records
	// (pending or invoiced) and returns the oldest creation time
	PendingDeferredSummary(ctx context.Context, tenantID, customerID uuid.UUID) (decimal.Decimal, *time.Time, error)
}

// BalanceRepository persists account balances
type BalanceRepository interface {
	// Find returns the balance or shared.ErrNotFound
	Find(ctx context.Context, tenantID, customerID uuid.UUID) (*AccountBalance, error)

	// GetOrCreateForUpdate locks the customer's balance row, opening it with
	// creditLimit when it does not exist yet
	GetOrCreateForUpdate(ctx context.Context, tenantID, customerID uuid.UUID, creditLimit decimal.Decimal) (*AccountBalance, error)

	// Save updates a balance with an optimistic version check
	Save(ctx context.Context, balance *AccountBalance) error

	// ListOutstanding returns balances above zero, largest first
	ListOutstanding(ctx context.Context, tenantID uuid.UUID) ([]AccountBalance, error)
}

// TermsRepository reads tenant configuration and customer profiles
type TermsRepository interface {
	// FindConfig returns the tenant's config or shared.ErrNotFound
	FindConfig(ctx context.Context, tenantID uuid.UUID) (*BillingConfig, error)

	// SaveConfig inserts or updates the tenant config
	SaveConfig(ctx context.Context, cfg *BillingConfig) error

	// FindProfile returns the customer's profile or shared.ErrNotFound
	FindProfile(ctx context.Context, tenantID, customerID uuid.UUID) (*BillingProfile, error)

	// SaveProfile inserts or updates a customer profile
	SaveProfile(ctx context.Context, profile *BillingProfile) error

	// ListAutoPayProfiles returns profiles with auto-pay on for dayOfMonth
	ListAutoPayProfiles(ctx context.Context, tenantID uuid.UUID, dayOfMonth int) ([]BillingProfile, error)
}

// PaymentMethodRepository reads stored payment instruments
type PaymentMethodRepository interface {
	// FindActive returns an active method owned by the customer,
	// or shared.ErrNotFound
	FindActive(ctx context.Context, tenantID, customerID, methodID uuid.UUID) (*PaymentMethod, error)

	// FindDefault returns the customer's active default method,
	// or shared.ErrNotFound
	FindDefault(ctx context.Context, tenantID, customerID uuid.UUID) (*PaymentMethod, error)

	// Save inserts or updates a method
	Save(ctx context.Context, method *PaymentMethod) error
}
