package models

import (
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PricedActionModel is the persistence model for the PricedAction aggregate root.
type PricedActionModel struct {
	BaseModel
	TenantID            uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_pricing_action_tenant_key,priority:1"`
	Version             int               `gorm:"not null;default:1"`
	Key                 pricing.ActionKey `gorm:"column:action_key;type:varchar(50);not null;uniqueIndex:idx_pricing_action_tenant_key,priority:2"`
	Name                string            `gorm:"type:varchar(200);not null"`
	Description         string            `gorm:"type:text"`
	Category            pricing.Category  `gorm:"type:varchar(20);not null;default:'general'"`
	RetailPrice         decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	UnitLabel           string            `gorm:"type:varchar(50);not null;default:'per item'"`
	HasTieredPricing    bool              `gorm:"not null;default:false"`
	FirstUnitPrice      *decimal.Decimal  `gorm:"type:decimal(18,4)"`
	AdditionalUnitPrice *decimal.Decimal  `gorm:"type:decimal(18,4)"`
	Cogs                decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	CogsFirstUnit       *decimal.Decimal  `gorm:"type:decimal(18,4)"`
	CogsAdditionalUnit  *decimal.Decimal  `gorm:"type:decimal(18,4)"`
	IsActive            bool              `gorm:"not null;index"`
	SortOrder           int               `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (PricedActionModel) TableName() string {
	return "pricing_actions"
}

// ToDomain converts the persistence model to a domain PricedAction. Overrides are loaded separately.
func (m *PricedActionModel) ToDomain() *pricing.PricedAction {
	return &pricing.PricedAction{
		TenantAggregateRoot: tenantRoot(m.BaseModel, m.TenantID, m.Version),
		Key:                 m.Key,
		Name:                m.Name,
		Description:         m.Description,
		Category:            m.Category,
		RetailPrice:         m.RetailPrice,
		UnitLabel:           m.UnitLabel,
		HasTieredPricing:    m.HasTieredPricing,
		FirstUnitPrice:      m.FirstUnitPrice,
		AdditionalUnitPrice: m.AdditionalUnitPrice,
		Cogs:                m.Cogs,
		CogsFirstUnit:       m.CogsFirstUnit,
		CogsAdditionalUnit:  m.CogsAdditionalUnit,
		IsActive:            m.IsActive,
		SortOrder:           m.SortOrder,
	}
}

// FromDomain populates the persistence model from a domain PricedAction.
func (m *PricedActionModel) FromDomain(a *pricing.PricedAction) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.TenantID = a.TenantID
	m.Version = a.Version
	m.Key = a.Key
	m.Name = a.Name
	m.Description = a.Description
	m.Category = a.Category
	m.RetailPrice = a.RetailPrice
	m.UnitLabel = a.UnitLabel
	m.HasTieredPricing = a.HasTieredPricing
	m.FirstUnitPrice = a.FirstUnitPrice
	m.AdditionalUnitPrice = a.AdditionalUnitPrice
	m.Cogs = a.Cogs
	m.CogsFirstUnit = a.CogsFirstUnit
	m.CogsAdditionalUnit = a.CogsAdditionalUnit
	m.IsActive = a.IsActive
	m.SortOrder = a.SortOrder
}

// PricedActionModelFromDomain creates a new persistence model from a domain PricedAction.
func PricedActionModelFromDomain(a *pricing.PricedAction) *PricedActionModel {
	m := &PricedActionModel{}
	m.FromDomain(a)
	return m
}

// PriceOverrideModel is the persistence model for segment and customer price overrides.
type PriceOverrideModel struct {
	BaseModel
	TenantID            uuid.UUID          `gorm:"type:uuid;not null;index"`
	ActionID            uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_pricing_override_target,priority:1"`
	TargetType          pricing.TargetType `gorm:"type:varchar(20);not null;uniqueIndex:idx_pricing_override_target,priority:2"`
	TargetValue         string             `gorm:"type:varchar(100);not null;uniqueIndex:idx_pricing_override_target,priority:3"`
	TargetLabel         string             `gorm:"type:varchar(200)"`
	RetailPrice         *decimal.Decimal   `gorm:"type:decimal(18,4)"`
	FirstUnitPrice      *decimal.Decimal   `gorm:"type:decimal(18,4)"`
	AdditionalUnitPrice *decimal.Decimal   `gorm:"type:decimal(18,4)"`
	Cogs                *decimal.Decimal   `gorm:"type:decimal(18,4)"`
	CogsFirstUnit       *decimal.Decimal   `gorm:"type:decimal(18,4)"`
	CogsAdditionalUnit  *decimal.Decimal   `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (PriceOverrideModel) TableName() string {
	return "pricing_overrides"
}

// ToDomain converts the persistence model to a domain PriceOverride.
func (m *PriceOverrideModel) ToDomain() pricing.PriceOverride {
	return pricing.PriceOverride{
		BaseEntity:          m.BaseModel.ToDomain(),
		TenantID:            m.TenantID,
		ActionID:            m.ActionID,
		TargetType:          m.TargetType,
		TargetValue:         m.TargetValue,
		TargetLabel:         m.TargetLabel,
		RetailPrice:         m.RetailPrice,
		FirstUnitPrice:      m.FirstUnitPrice,
		AdditionalUnitPrice: m.AdditionalUnitPrice,
		Cogs:                m.Cogs,
		CogsFirstUnit:       m.CogsFirstUnit,
		CogsAdditionalUnit:  m.CogsAdditionalUnit,
	}
}

// PriceOverrideModelFromDomain creates a new persistence model from a domain PriceOverride.
func PriceOverrideModelFromDomain(o *pricing.PriceOverride) *PriceOverrideModel {
	return &PriceOverrideModel{
		BaseModel:           BaseModel{ID: o.ID, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt},
		TenantID:            o.TenantID,
		ActionID:            o.ActionID,
		TargetType:          o.TargetType,
		TargetValue:         o.TargetValue,
		TargetLabel:         o.TargetLabel,
		RetailPrice:         o.RetailPrice,
		FirstUnitPrice:      o.FirstUnitPrice,
		AdditionalUnitPrice: o.AdditionalUnitPrice,
		Cogs:                o.Cogs,
		CogsFirstUnit:       o.CogsFirstUnit,
		CogsAdditionalUnit:  o.CogsAdditionalUnit,
	}
}

func tenantRoot(base BaseModel, tenantID uuid.UUID, version int) shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: base.ToDomain(),
			Version:    version,
		},
		TenantID: tenantID,
	}
}
