package pricing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TargetType selects what an override applies to
type TargetType string

const (
	TargetSegment  TargetType = "segment"
	TargetCustomer TargetType = "customer"
)

// IsValid checks if the target type is valid
func (t TargetType) IsValid() bool {
	return t == TargetSegment || t == TargetCustomer
}

// Known customer segments (the customer's platform)
const (
	SegmentPhysical = "physical"
	SegmentIPostal  = "iPostal"
	SegmentAnytime  = "anytime"
	SegmentPostScan = "postscan"
)

// PriceOverride narrows a priced action for one segment or one customer.
// Nil fields fall back to the base action's value.
type PriceOverride struct {
	shared.BaseEntity
	TenantID            uuid.UUID
	ActionID            uuid.UUID
	TargetType          TargetType
	TargetValue         string
	TargetLabel         string
	RetailPrice         *decimal.Decimal
	FirstUnitPrice      *decimal.Decimal
	AdditionalUnitPrice *decimal.Decimal
	Cogs                *decimal.Decimal
	CogsFirstUnit       *decimal.Decimal
	CogsAdditionalUnit  *decimal.Decimal
}

// OverrideInput carries the fields of an override upsert
type OverrideInput struct {
	TargetType          TargetType
	TargetValue         string
	TargetLabel         string
	RetailPrice         *decimal.Decimal
	FirstUnitPrice      *decimal.Decimal
	AdditionalUnitPrice *decimal.Decimal
	Cogs                *decimal.Decimal
	CogsFirstUnit       *decimal.Decimal
	CogsAdditionalUnit  *decimal.Decimal
}

// NewPriceOverride builds an override for the given action
func NewPriceOverride(action *PricedAction, in OverrideInput) (*PriceOverride, error) {
	if action == nil {
		return nil, shared.NewDomainError("INVALID_ACTION", "Override requires a priced action")
	}
	if !in.TargetType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TARGET_TYPE", "Target type must be segment or customer")
	}
	value := strings.TrimSpace(in.TargetValue)
	if value == "" {
		return nil, shared.NewDomainError("INVALID_TARGET_VALUE", "Target value cannot be empty")
	}
	if in.TargetType == TargetCustomer {
		if _, err := uuid.Parse(value); err != nil {
			return nil, shared.NewDomainError("INVALID_TARGET_VALUE", "Customer override target must be a customer ID")
		}
	}
	for _, v := range []*decimal.Decimal{in.RetailPrice, in.FirstUnitPrice, in.AdditionalUnitPrice, in.Cogs, in.CogsFirstUnit, in.CogsAdditionalUnit} {
		if v != nil && v.IsNegative() {
			return nil, shared.NewDomainError("INVALID_PRICE", "Prices and costs cannot be negative")
		}
	}
	return &PriceOverride{
		BaseEntity:          shared.NewBaseEntity(),
		TenantID:            action.TenantID,
		ActionID:            action.ID,
		TargetType:          in.TargetType,
		TargetValue:         value,
		TargetLabel:         in.TargetLabel,
		RetailPrice:         in.RetailPrice,
		FirstUnitPrice:      in.FirstUnitPrice,
		AdditionalUnitPrice: in.AdditionalUnitPrice,
		Cogs:                in.Cogs,
		CogsFirstUnit:       in.CogsFirstUnit,
		CogsAdditionalUnit:  in.CogsAdditionalUnit,
	}, nil
}
