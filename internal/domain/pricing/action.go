package pricing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ActionKey identifies a priced action within a tenant's catalog
type ActionKey string

const (
	ActionPackageReceiving  ActionKey = "package_receiving"
	ActionPackageStorage    ActionKey = "package_storage"
	ActionPackageForwarding ActionKey = "package_forwarding"
	ActionMailScanning      ActionKey = "mail_scanning"
	ActionPackagePickup     ActionKey = "package_pickup"
	ActionMailDisposal      ActionKey = "mail_disposal"
	ActionShippingLabel     ActionKey = "shipping_label"
	ActionCustomService     ActionKey = "custom_service"
)

// Category groups actions on the pricing dashboard
type Category string

const (
	CategoryMail     Category = "mail"
	CategoryPackage  Category = "package"
	CategoryShipping Category = "shipping"
	CategoryScanning Category = "scanning"
	CategoryNotary   Category = "notary"
	CategoryGeneral  Category = "general"
)

// IsValid checks if the category is valid
func (c Category) IsValid() bool {
	switch c {
	case CategoryMail, CategoryPackage, CategoryShipping, CategoryScanning, CategoryNotary, CategoryGeneral:
		return true
	}
	return false
}

// PricedAction is a billable action in a tenant's catalog.
// Actions are deactivated rather than deleted once charges reference them.
type PricedAction struct {
	shared.TenantAggregateRoot
	Key                 ActionKey
	Name                string
	Description         string
	Category            Category
	RetailPrice         decimal.Decimal
	UnitLabel           string
	HasTieredPricing    bool
	FirstUnitPrice      *decimal.Decimal
	AdditionalUnitPrice *decimal.Decimal
	Cogs                decimal.Decimal
	CogsFirstUnit       *decimal.Decimal
	CogsAdditionalUnit  *decimal.Decimal
	IsActive            bool
	SortOrder           int
	Overrides           []PriceOverride
}

// ActionInput carries the editable fields of a priced action
type ActionInput struct {
	Key                 string
	Name                string
	Description         string
	Category            Category
	RetailPrice         decimal.Decimal
	UnitLabel           string
	HasTieredPricing    bool
	FirstUnitPrice      *decimal.Decimal
	AdditionalUnitPrice *decimal.Decimal
	Cogs                decimal.Decimal
	CogsFirstUnit       *decimal.Decimal
	CogsAdditionalUnit  *decimal.Decimal
	SortOrder           int
}

// NewPricedAction creates an active priced action
func NewPricedAction(tenantID uuid.UUID, in ActionInput) (*PricedAction, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	key := strings.TrimSpace(in.Key)
	if key == "" {
		return nil, shared.NewDomainError("INVALID_ACTION_KEY", "Action key cannot be empty")
	}
	a := &PricedAction{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Key:                 ActionKey(key),
		IsActive:            true,
	}
	if err := a.apply(in); err != nil {
		return nil, err
	}
	return a, nil
}

// Update replaces the editable fields. The key is immutable.
func (a *PricedAction) Update(in ActionInput) error {
	in.Key = string(a.Key)
	if err := a.apply(in); err != nil {
		return err
	}
	a.Touch()
	return nil
}

func (a *PricedAction) apply(in ActionInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return shared.NewDomainError("INVALID_ACTION_NAME", "Action name cannot be empty")
	}
	category := in.Category
	if category == "" {
		category = CategoryGeneral
	}
	if !category.IsValid() {
		return shared.NewDomainError("INVALID_CATEGORY", "Unknown action category")
	}
	for _, v := range []*decimal.Decimal{&in.RetailPrice, &in.Cogs, in.FirstUnitPrice, in.AdditionalUnitPrice, in.CogsFirstUnit, in.CogsAdditionalUnit} {
		if v != nil && v.IsNegative() {
			return shared.NewDomainError("INVALID_PRICE", "Prices and costs cannot be negative")
		}
	}
	unitLabel := in.UnitLabel
	if unitLabel == "" {
		unitLabel = "per item"
	}

	a.Name = name
	a.Description = in.Description
	a.Category = category
	a.RetailPrice = in.RetailPrice
	a.UnitLabel = unitLabel
	a.HasTieredPricing = in.HasTieredPricing
	a.FirstUnitPrice = in.FirstUnitPrice
	a.AdditionalUnitPrice = in.AdditionalUnitPrice
	a.Cogs = in.Cogs
	a.CogsFirstUnit = in.CogsFirstUnit
	a.CogsAdditionalUnit = in.CogsAdditionalUnit
	a.SortOrder = in.SortOrder
	return nil
}

// Deactivate hides the action from resolution
func (a *PricedAction) Deactivate() {
	if !a.IsActive {
		return
	}
	a.IsActive = false
	a.Touch()
}

// Activate makes the action available to resolution again
func (a *PricedAction) Activate() {
	if a.IsActive {
		return
	}
	a.IsActive = true
	a.Touch()
}
