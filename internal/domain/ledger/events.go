package ledger

import (
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeCharge is the aggregate type for charge events
const AggregateTypeCharge = "ChargeEntry"

// EventTypeChargeRecorded is published when a charge enters the ledger
const EventTypeChargeRecorded = "ChargeRecorded"

// ChargeRecordedEvent is published when a charge enters the ledger
type ChargeRecordedEvent struct {
	shared.BaseDomainEvent
	CustomerID  uuid.UUID       `json:"customer_id"`
	ServiceType ServiceType     `json:"service_type"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
}

// NewChargeRecordedEvent creates a ChargeRecordedEvent
func NewChargeRecordedEvent(e *ChargeEntry) *ChargeRecordedEvent {
	return &ChargeRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeChargeRecorded, AggregateTypeCharge, e.ID, e.TenantID),
		CustomerID:      e.CustomerID,
		ServiceType:     e.ServiceType,
		Quantity:        e.Quantity,
		Total:           e.Total,
	}
}
