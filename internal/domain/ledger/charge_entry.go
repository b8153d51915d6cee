package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DayFormat is the layout of ChargeEntry.ChargeDay
const DayFormat = "2006-01-02"

// ChargeEntry is one billable occurrence. Quantity and amounts never
// change after creation; corrections are made with a reversing entry.
type ChargeEntry struct {
	shared.TenantAggregateRoot
	CustomerID         uuid.UUID
	MailboxID          string
	ServiceType        ServiceType
	Description        string
	Quantity           int
	UnitRate           decimal.Decimal
	CostBasis          decimal.Decimal
	Markup             decimal.Decimal
	Total              decimal.Decimal
	PriceSource        pricing.Source
	Status             ChargeStatus
	PackageID          *uuid.UUID
	ShipmentID         *uuid.UUID
	MailPieceID        *uuid.UUID
	SettlementRecordID *uuid.UUID
	ReversalOf         *uuid.UUID
	CreatedByID        *uuid.UUID
	Notes              string
	ChargeDay          string
	// Recurring marks entries produced by the daily storage run
	Recurring          bool
}

// ChargeInput is the billing-relevant payload of a domain event
type ChargeInput struct {
	TenantID    uuid.UUID
	CustomerID  uuid.UUID
	MailboxID   string
	ServiceType ServiceType
	Description string
	Quantity    int
	PackageID   *uuid.UUID
	ShipmentID  *uuid.UUID
	MailPieceID *uuid.UUID
	CreatedByID *uuid.UUID
	Notes       string
	OccurredAt  time.Time
	Recurring   bool
}

// Validate checks the input and applies defaults
func (in *ChargeInput) Validate() error {
	if in.TenantID == uuid.Nil {
		return shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if in.CustomerID == uuid.Nil {
		return shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if !in.ServiceType.IsValid() {
		return shared.NewDomainError("INVALID_SERVICE_TYPE", fmt.Sprintf("Unknown service type %q", in.ServiceType))
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if strings.TrimSpace(in.Description) == "" {
		in.Description = in.ServiceType.Label()
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = time.Now()
	}
	return nil
}

// NewChargeEntry creates a pending entry priced by price
func NewChargeEntry(in ChargeInput, price pricing.ResolvedPrice) (*ChargeEntry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	e := &ChargeEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(in.TenantID),
		CustomerID:          in.CustomerID,
		MailboxID:           in.MailboxID,
		ServiceType:         in.ServiceType,
		Description:         in.Description,
		Quantity:            in.Quantity,
		UnitRate:            price.UnitRate,
		CostBasis:           price.CostBasis,
		Markup:              price.Markup,
		Total:               price.Total,
		PriceSource:         price.Source,
		Status:              ChargeStatusPending,
		PackageID:           in.PackageID,
		ShipmentID:          in.ShipmentID,
		MailPieceID:         in.MailPieceID,
		CreatedByID:         in.CreatedByID,
		Notes:               in.Notes,
		ChargeDay:           in.OccurredAt.UTC().Format(DayFormat),
		Recurring:           in.Recurring,
	}
	e.CreatedAt = in.OccurredAt
	e.UpdatedAt = in.OccurredAt
	e.AddDomainEvent(NewChargeRecordedEvent(e))
	return e, nil
}

// TransitionTo moves the entry to next, enforcing the transition table
func (e *ChargeEntry) TransitionTo(next ChargeStatus) error {
	if !e.Status.CanTransitionTo(next) {
		return shared.NewDomainError("INVALID_STATE_TRANSITION",
			fmt.Sprintf("Charge cannot move from %s to %s", e.Status, next))
	}
	e.Status = next
	e.Touch()
	return nil
}

// MarkSettled records the settlement outcome for the entry
func (e *ChargeEntry) MarkSettled(recordID uuid.UUID, status ChargeStatus) error {
	if err := e.TransitionTo(status); err != nil {
		return err
	}
	e.SettlementRecordID = &recordID
	return nil
}

// Reverse voids an unsettled entry and returns the reversing entry
// that offsets it in the ledger.
func (e *ChargeEntry) Reverse(reason string) (*ChargeEntry, error) {
	if e.Status != ChargeStatusPending {
		return nil, shared.NewDomainError("CHARGE_ALREADY_SETTLED",
			"Only unsettled charges can be reversed; settled charges are corrected through their invoice")
	}
	if err := e.TransitionTo(ChargeStatusVoid); err != nil {
		return nil, err
	}
	now := time.Now()
	originalID := e.ID
	r := &ChargeEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(e.TenantID),
		CustomerID:          e.CustomerID,
		MailboxID:           e.MailboxID,
		ServiceType:         e.ServiceType,
		Description:         "Reversal: " + e.Description,
		Quantity:            e.Quantity,
		UnitRate:            e.UnitRate,
		CostBasis:           e.CostBasis.Neg(),
		Markup:              e.Markup.Neg(),
		Total:               e.Total.Neg(),
		PriceSource:         e.PriceSource,
		Status:              ChargeStatusVoid,
		PackageID:           e.PackageID,
		ShipmentID:          e.ShipmentID,
		MailPieceID:         e.MailPieceID,
		ReversalOf:          &originalID,
		Notes:               reason,
		ChargeDay:           now.UTC().Format(DayFormat),
	}
	return r, nil
}

// IsZero reports whether the entry bills nothing
func (e *ChargeEntry) IsZero() bool {
	return e.Total.IsZero()
}
