package invoicing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TypeTimeOfService marks invoices built from deferred time-of-service charges
const TypeTimeOfService = "tos_billing"

// Invoice is a snapshot of deferred settlement records. Amount always
// equals the sum of the line item amounts. Paid invoices never change.
type Invoice struct {
	shared.TenantAggregateRoot
	Number          string
	CustomerID      uuid.UUID
	Type            string
	Amount          decimal.Decimal
	Tax             decimal.Decimal
	AmountPaid      decimal.Decimal
	Status          Status
	DueDate         time.Time
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	Notes           string
	SentAt          *time.Time
	SentVia         Channel
	PaidAt          *time.Time
	PaymentMethodID *uuid.UUID
	PaymentRef      string
	LineItems       []LineItem
}

// LineItem freezes one consumed settlement record
type LineItem struct {
	ID                 uuid.UUID
	InvoiceID          uuid.UUID
	Description        string
	ServiceType        string
	Quantity           int
	UnitPrice          decimal.Decimal
	Amount             decimal.Decimal
	SettlementRecordID *uuid.UUID
	ChargeEntryID      *uuid.UUID
	SortOrder          int
}

// Draft describes an invoice about to be generated
type Draft struct {
	TenantID    uuid.UUID
	CustomerID  uuid.UUID
	Number      string
	DueDate     time.Time
	PeriodStart *time.Time
	PeriodEnd   time.Time
	Notes       string
}

// NewInvoice builds a draft invoice consuming records in order
func NewInvoice(d Draft, records []settlement.Record) (*Invoice, error) {
	if len(records) == 0 {
		return nil, ErrNothingToInvoice
	}
	if d.Number == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number is required")
	}
	periodEnd := d.PeriodEnd
	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(d.TenantID),
		Number:              d.Number,
		CustomerID:          d.CustomerID,
		Type:                TypeTimeOfService,
		AmountPaid:          decimal.Zero,
		Status:              StatusDraft,
		DueDate:             d.DueDate,
		PeriodStart:         d.PeriodStart,
		PeriodEnd:           &periodEnd,
		Notes:               d.Notes,
	}

	amounts := make([]decimal.Decimal, 0, len(records))
	taxes := make([]decimal.Decimal, 0, len(records))
	for i := range records {
		r := &records[i]
		if r.Mode != settlement.ModeDeferred || r.Status != settlement.RecordStatusPending || r.InvoiceID != nil {
			return nil, shared.NewDomainError("RECORD_NOT_INVOICEABLE",
				fmt.Sprintf("Settlement record %s is not a pending deferred charge", r.ID))
		}
		if r.CustomerID != d.CustomerID || r.TenantID != d.TenantID {
			return nil, shared.NewDomainError("RECORD_NOT_INVOICEABLE",
				fmt.Sprintf("Settlement record %s belongs to another customer", r.ID))
		}
		recordID := r.ID
		inv.LineItems = append(inv.LineItems, LineItem{
			ID:                 uuid.New(),
			InvoiceID:          inv.ID,
			Description:        r.Description,
			ServiceType:        r.ReferenceType,
			Quantity:           1,
			UnitPrice:          r.Amount,
			Amount:             r.Amount,
			SettlementRecordID: &recordID,
			ChargeEntryID:      r.ChargeEntryID,
			SortOrder:          i,
		})
		amounts = append(amounts, r.Amount)
		taxes = append(taxes, r.Tax)
	}
	inv.Amount = shared.SumMoney(amounts...)
	inv.Tax = shared.SumMoney(taxes...)
	return inv, nil
}

// FormatNumber renders INV-YYYYMMDD-NNNNN
func FormatNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%05d", day.Format("20060102"), seq)
}

// Total is amount plus tax
func (inv *Invoice) Total() decimal.Decimal {
	return shared.SumMoney(inv.Amount, inv.Tax)
}

// AmountDue is what remains to be paid
func (inv *Invoice) AmountDue() decimal.Decimal {
	return shared.NonNegative(shared.RoundMoney(inv.Total().Sub(inv.AmountPaid)))
}

// RecordIDs returns the settlement records consumed by the invoice
func (inv *Invoice) RecordIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		if li.SettlementRecordID != nil {
			ids = append(ids, *li.SettlementRecordID)
		}
	}
	return ids
}

// ChargeEntryIDs returns the ledger entries behind the line items
func (inv *Invoice) ChargeEntryIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		if li.ChargeEntryID != nil {
			ids = append(ids, *li.ChargeEntryID)
		}
	}
	return ids
}

func (inv *Invoice) transitionTo(next Status) error {
	if !inv.Status.CanTransitionTo(next) {
		return shared.NewDomainError("INVALID_STATE_TRANSITION",
			fmt.Sprintf("Invoice cannot move from %s to %s", inv.Status, next))
	}
	inv.Status = next
	inv.Touch()
	return nil
}

// Send delivers the invoice. Re-sending an open invoice records the new
// delivery without changing its status.
func (inv *Invoice) Send(via Channel, now time.Time) error {
	if !via.IsValid() {
		return shared.NewDomainError("INVALID_CHANNEL", "Invoice channel must be email, in_app or print")
	}
	switch inv.Status {
	case StatusPaid:
		return ErrInvoiceAlreadyPaid
	case StatusVoid:
		return ErrInvoiceVoided
	case StatusDraft:
		if err := inv.transitionTo(StatusSent); err != nil {
			return err
		}
	default:
		inv.Touch()
	}
	inv.SentAt = &now
	inv.SentVia = via
	inv.AddDomainEvent(NewInvoiceSentEvent(inv))
	return nil
}

// Payment is money received against an invoice
type Payment struct {
	Amount          decimal.Decimal
	PaymentMethodID *uuid.UUID
	Reference       string
	Method          string
}

// ApplyPayment adds a payment and reports whether the invoice is now
// paid in full. Partial payments leave consumed records untouched.
func (inv *Invoice) ApplyPayment(p Payment, now time.Time) (bool, error) {
	switch inv.Status {
	case StatusPaid:
		return false, ErrInvoiceAlreadyPaid
	case StatusVoid:
		return false, ErrInvoiceVoided
	}
	if !p.Amount.IsPositive() {
		return false, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	inv.AmountPaid = shared.RoundMoney(inv.AmountPaid.Add(p.Amount))
	inv.PaymentMethodID = p.PaymentMethodID
	inv.PaymentRef = p.Reference

	if inv.AmountPaid.GreaterThanOrEqual(inv.Total()) {
		if err := inv.transitionTo(StatusPaid); err != nil {
			return false, err
		}
		inv.PaidAt = &now
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
		return true, nil
	}
	if inv.Status != StatusPartiallyPaid {
		if err := inv.transitionTo(StatusPartiallyPaid); err != nil {
			return false, err
		}
	} else {
		inv.Touch()
	}
	return false, nil
}

// Void cancels an unpaid invoice
func (inv *Invoice) Void() error {
	switch inv.Status {
	case StatusPaid:
		return ErrCannotVoidPaid
	case StatusVoid:
		return ErrInvoiceVoided
	}
	if err := inv.transitionTo(StatusVoid); err != nil {
		return err
	}
	inv.AddDomainEvent(NewInvoiceVoidedEvent(inv))
	return nil
}

// MarkOverdue flags a sent invoice whose due date has passed
func (inv *Invoice) MarkOverdue(now time.Time) bool {
	if inv.Status != StatusSent && inv.Status != StatusPartiallyPaid {
		return false
	}
	if !now.After(inv.DueDate) {
		return false
	}
	return inv.transitionTo(StatusOverdue) == nil
}
