package models

import (
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ChargeEntryModel is the persistence model for the ChargeEntry aggregate root.
type ChargeEntryModel struct {
	TenantAggregateModel
	CustomerID         uuid.UUID           `gorm:"type:uuid;not null;index"`
	MailboxID          string              `gorm:"type:varchar(50)"`
	ServiceType        ledger.ServiceType  `gorm:"type:varchar(20);not null;index:idx_charge_recurring_guard,priority:2"`
	Description        string              `gorm:"type:varchar(500);not null"`
	Quantity           int                 `gorm:"not null;default:1"`
	UnitRate           decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	CostBasis          decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Markup             decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Total              decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	PriceSource        pricing.Source      `gorm:"type:varchar(30);not null"`
	Status             ledger.ChargeStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	PackageID          *uuid.UUID          `gorm:"type:uuid;index:idx_charge_recurring_guard,priority:1"`
	ShipmentID         *uuid.UUID          `gorm:"type:uuid;index"`
	MailPieceID        *uuid.UUID          `gorm:"type:uuid"`
	SettlementRecordID *uuid.UUID          `gorm:"type:uuid;index"`
	ReversalOf         *uuid.UUID          `gorm:"type:uuid"`
	CreatedByID        *uuid.UUID          `gorm:"type:uuid"`
	Notes              string              `gorm:"type:text"`
	ChargeDay          string              `gorm:"type:varchar(10);not null;index:idx_charge_recurring_guard,priority:3"`
	Recurring          bool                `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ChargeEntryModel) TableName() string {
	return "charge_entries"
}

// ToDomain converts the persistence model to a domain ChargeEntry.
func (m *ChargeEntryModel) ToDomain() *ledger.ChargeEntry {
	return &ledger.ChargeEntry{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		MailboxID:           m.MailboxID,
		ServiceType:         m.ServiceType,
		Description:         m.Description,
		Quantity:            m.Quantity,
		UnitRate:            m.UnitRate,
		CostBasis:           m.CostBasis,
		Markup:              m.Markup,
		Total:               m.Total,
		PriceSource:         m.PriceSource,
		Status:              m.Status,
		PackageID:           m.PackageID,
		ShipmentID:          m.ShipmentID,
		MailPieceID:         m.MailPieceID,
		SettlementRecordID:  m.SettlementRecordID,
		ReversalOf:          m.ReversalOf,
		CreatedByID:         m.CreatedByID,
		Notes:               m.Notes,
		ChargeDay:           m.ChargeDay,
		Recurring:           m.Recurring,
	}
}

// FromDomain populates the persistence model from a domain ChargeEntry.
func (m *ChargeEntryModel) FromDomain(e *ledger.ChargeEntry) {
	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	m.CustomerID = e.CustomerID
	m.MailboxID = e.MailboxID
	m.ServiceType = e.ServiceType
	m.Description = e.Description
	m.Quantity = e.Quantity
	m.UnitRate = e.UnitRate
	m.CostBasis = e.CostBasis
	m.Markup = e.Markup
	m.Total = e.Total
	m.PriceSource = e.PriceSource
	m.Status = e.Status
	m.PackageID = e.PackageID
	m.ShipmentID = e.ShipmentID
	m.MailPieceID = e.MailPieceID
	m.SettlementRecordID = e.SettlementRecordID
	m.ReversalOf = e.ReversalOf
	m.CreatedByID = e.CreatedByID
	m.Notes = e.Notes
	m.ChargeDay = e.ChargeDay
	m.Recurring = e.Recurring
}

// ChargeEntryModelFromDomain creates a new persistence model from a domain ChargeEntry.
func ChargeEntryModelFromDomain(e *ledger.ChargeEntry) *ChargeEntryModel {
	m := &ChargeEntryModel{}
	m.FromDomain(e)
	return m
}

// UsageMeterModel is the persistence model for a tenant usage meter.
type UsageMeterModel struct {
	BaseModel
	TenantID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_usage_meter_tenant_slug,priority:1"`
	Slug     ledger.MeterSlug `gorm:"type:varchar(50);not null;uniqueIndex:idx_usage_meter_tenant_slug,priority:2"`
	Name     string           `gorm:"type:varchar(100);not null"`
	IsActive bool             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UsageMeterModel) TableName() string {
	return "usage_meters"
}

// ToDomain converts the persistence model to a domain UsageMeter.
func (m *UsageMeterModel) ToDomain() *ledger.UsageMeter {
	return &ledger.UsageMeter{
		BaseEntity: m.BaseModel.ToDomain(),
		TenantID:   m.TenantID,
		Slug:       m.Slug,
		Name:       m.Name,
		IsActive:   m.IsActive,
	}
}

// UsageMeterModelFromDomain creates a new persistence model from a domain UsageMeter.
func UsageMeterModelFromDomain(u *ledger.UsageMeter) *UsageMeterModel {
	m := &UsageMeterModel{
		TenantID: u.TenantID,
		Slug:     u.Slug,
		Name:     u.Name,
		IsActive: u.IsActive,
	}
	m.FromDomainBaseEntity(u.BaseEntity)
	return m
}

// UsageRecordModel is the persistence model for an immutable usage row.
type UsageRecordModel struct {
	BaseModel
	MeterID    uuid.UUID         `gorm:"type:uuid;not null;index:idx_usage_record_period,priority:1"`
	TenantID   uuid.UUID         `gorm:"type:uuid;not null;index"`
	CustomerID uuid.UUID         `gorm:"type:uuid;not null;index:idx_usage_record_period,priority:2"`
	Quantity   int               `gorm:"not null"`
	Period     string            `gorm:"type:varchar(7);not null;index:idx_usage_record_period,priority:3"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (UsageRecordModel) TableName() string {
	return "usage_records"
}

// ToDomain converts the persistence model to a domain UsageRecord.
func (m *UsageRecordModel) ToDomain() *ledger.UsageRecord {
	return &ledger.UsageRecord{
		BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		MeterID:    m.MeterID,
		TenantID:   m.TenantID,
		CustomerID: m.CustomerID,
		Quantity:   m.Quantity,
		Period:     m.Period,
		Metadata:   map[string]any(m.Metadata),
	}
}

// UsageRecordModelFromDomain creates a new persistence model from a domain UsageRecord.
func UsageRecordModelFromDomain(r *ledger.UsageRecord) *UsageRecordModel {
	m := &UsageRecordModel{
		MeterID:    r.MeterID,
		TenantID:   r.TenantID,
		CustomerID: r.CustomerID,
		Quantity:   r.Quantity,
		Period:     r.Period,
		Metadata:   datatypes.JSONMap(r.Metadata),
	}
	m.FromDomainBaseEntity(r.BaseEntity)
	return m
}
