package settlement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MaxRetries caps retries of a failed immediate capture. Past the cap the
// record needs manual handling.
const MaxRetries = 3

// DeferredSuffix is appended to the description of a fallback record
const DeferredSuffix = " (deferred after failed payment)"

// Record is one attempt to collect money for a charge.
// A failed immediate attempt is never mutated into a deferred one; the
// fallback is a separate record linked through FallbackOf.
type Record struct {
	shared.TenantAggregateRoot
	CustomerID        uuid.UUID
	Mode              Mode
	Description       string
	Amount            decimal.Decimal
	Tax               decimal.Decimal
	Total             decimal.Decimal
	Status            RecordStatus
	PaymentMethodID   *uuid.UUID
	PaymentMethodType string
	PaymentRef        string
	FailureReason     string
	RetryCount        int
	LastRetryAt       *time.Time
	DueDate           *time.Time
	PaidAt            *time.Time
	ChargeEntryID     *uuid.UUID
	InvoiceID         *uuid.UUID
	FallbackOf        *uuid.UUID
	ReferenceType     string
	ReferenceID       string
}

// RecordInput carries what is being collected
type RecordInput struct {
	TenantID      uuid.UUID
	CustomerID    uuid.UUID
	Description   string
	Amount        decimal.Decimal
	Tax           decimal.Decimal
	ChargeEntryID *uuid.UUID
	ReferenceType string
	ReferenceID   string
}

func newRecord(in RecordInput, mode Mode, status RecordStatus) (*Record, error) {
	if in.TenantID == uuid.Nil || in.CustomerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Tenant and customer are required")
	}
	if in.Amount.IsNegative() || in.Tax.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Settlement amounts cannot be negative")
	}
	return &Record{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(in.TenantID),
		CustomerID:          in.CustomerID,
		Mode:                mode,
		Description:         in.Description,
		Amount:              shared.RoundMoney(in.Amount),
		Tax:                 shared.RoundMoney(in.Tax),
		Total:               shared.SumMoney(in.Amount, in.Tax),
		Status:              status,
		ChargeEntryID:       in.ChargeEntryID,
		ReferenceType:       in.ReferenceType,
		ReferenceID:         in.ReferenceID,
	}, nil
}

// NewCapturedRecord records a successful immediate capture
func NewCapturedRecord(in RecordInput, method *PaymentMethod, reference string) (*Record, error) {
	r, err := newRecord(in, ModeImmediate, RecordStatusPaid)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	r.usedMethod(method)
	r.PaymentRef = reference
	r.PaidAt = &now
	return r, nil
}

// NewFailedRecord records a failed immediate attempt. method may be nil
// when the customer has no usable instrument.
func NewFailedRecord(in RecordInput, method *PaymentMethod, reason string) (*Record, error) {
	r, err := newRecord(in, ModeImmediate, RecordStatusFailed)
	if err != nil {
		return nil, err
	}
	r.usedMethod(method)
	r.FailureReason = reason
	r.RetryCount = 0
	r.AddDomainEvent(NewPaymentFailedEvent(r))
	return r, nil
}

// NewDeferredRecord records an amount added to the customer's account.
// fallbackOf links the record to the failed immediate attempt it replaces.
func NewDeferredRecord(in RecordInput, dueDate time.Time, fallbackOf *Record) (*Record, error) {
	if fallbackOf != nil {
		in.Description += DeferredSuffix
	}
	r, err := newRecord(in, ModeDeferred, RecordStatusPending)
	if err != nil {
		return nil, err
	}
	r.DueDate = &dueDate
	if fallbackOf != nil {
		id := fallbackOf.ID
		r.FallbackOf = &id
	}
	return r, nil
}

func (r *Record) usedMethod(method *PaymentMethod) {
	if method == nil {
		return
	}
	id := method.ID
	r.PaymentMethodID = &id
	r.PaymentMethodType = string(method.Type)
}

func (r *Record) transitionTo(next RecordStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return shared.NewDomainError("INVALID_STATE_TRANSITION",
			fmt.Sprintf("Settlement record cannot move from %s to %s", r.Status, next))
	}
	r.Status = next
	r.Touch()
	return nil
}

// CanRetry reports whether another capture attempt is allowed
func (r *Record) CanRetry() bool {
	return r.Mode == ModeImmediate && r.Status == RecordStatusFailed && r.RetryCount < MaxRetries
}

// CheckRetryable returns why another capture attempt is not allowed, or nil
func (r *Record) CheckRetryable() error {
	if r.Status != RecordStatusFailed || r.Mode != ModeImmediate {
		return ErrRecordNotFailed
	}
	if r.RetryCount >= MaxRetries {
		return ErrRetryLimitExceeded
	}
	return nil
}

// BeginRetry counts a retry attempt
func (r *Record) BeginRetry(now time.Time) error {
	if err := r.CheckRetryable(); err != nil {
		return err
	}
	r.RetryCount++
	r.LastRetryAt = &now
	r.Touch()
	return nil
}

// RetryFailed keeps the record failed with the latest reason
func (r *Record) RetryFailed(reason string) {
	r.FailureReason = reason
	r.Touch()
	r.AddDomainEvent(NewPaymentFailedEvent(r))
}

// Captured marks a previously failed record as collected
func (r *Record) Captured(method *PaymentMethod, reference string, at time.Time) error {
	if err := r.transitionTo(RecordStatusPaid); err != nil {
		return err
	}
	r.usedMethod(method)
	r.PaymentRef = reference
	r.FailureReason = ""
	r.PaidAt = &at
	return nil
}

// AttachInvoice marks a pending deferred record as consumed by an invoice
func (r *Record) AttachInvoice(invoiceID uuid.UUID) error {
	if r.Mode != ModeDeferred {
		return shared.NewDomainError("INVALID_STATE", "Only deferred records can be invoiced")
	}
	if r.InvoiceID != nil {
		return ErrAlreadyInvoiced
	}
	if err := r.transitionTo(RecordStatusInvoiced); err != nil {
		return err
	}
	r.InvoiceID = &invoiceID
	return nil
}

// DetachInvoice returns an invoiced record to pending
func (r *Record) DetachInvoice() error {
	if err := r.transitionTo(RecordStatusPending); err != nil {
		return err
	}
	r.InvoiceID = nil
	return nil
}

// SettleDeferred marks a deferred record paid, either through its invoice
// or because a retried immediate capture collected the same amount.
func (r *Record) SettleDeferred(reference string, at time.Time) error {
	if err := r.transitionTo(RecordStatusPaid); err != nil {
		return err
	}
	if reference != "" {
		r.PaymentRef = reference
	}
	r.PaidAt = &at
	return nil
}

// IsOverdue reports whether a pending deferred record is past its due date
func (r *Record) IsOverdue(now time.Time) bool {
	return r.Mode == ModeDeferred && r.Status == RecordStatusPending && r.DueDate != nil && now.After(*r.DueDate)
}
