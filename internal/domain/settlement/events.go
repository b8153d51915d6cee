package settlement

import (
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeSettlement is the aggregate type for settlement events
const AggregateTypeSettlement = "SettlementRecord"

const (
	EventTypePaymentFailed = "PaymentFailed"
	EventTypeChargeSettled = "ChargeSettled"
)

// PaymentFailedEvent is published when an immediate capture fails
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID       `json:"customer_id"`
	Total      decimal.Decimal `json:"total"`
	Reason     string          `json:"reason"`
	RetryCount int             `json:"retry_count"`
}

// NewPaymentFailedEvent creates a PaymentFailedEvent
func NewPaymentFailedEvent(r *Record) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentFailed, AggregateTypeSettlement, r.ID, r.TenantID),
		CustomerID:      r.CustomerID,
		Total:           r.Total,
		Reason:          r.FailureReason,
		RetryCount:      r.RetryCount,
	}
}

// ChargeSettledEvent is published once a charge has left the pending state
type ChargeSettledEvent struct {
	shared.BaseDomainEvent
	ChargeEntryID uuid.UUID       `json:"charge_entry_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Mode          Mode            `json:"mode"`
	Status        RecordStatus    `json:"status"`
	Total         decimal.Decimal `json:"total"`
}

// NewChargeSettledEvent creates a ChargeSettledEvent for the record that
// finally holds the charge
func NewChargeSettledEvent(r *Record, chargeEntryID uuid.UUID) *ChargeSettledEvent {
	return &ChargeSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeChargeSettled, AggregateTypeSettlement, r.ID, r.TenantID),
		ChargeEntryID:   chargeEntryID,
		CustomerID:      r.CustomerID,
		Mode:            r.Mode,
		Status:          r.Status,
		Total:           r.Total,
	}
}
