package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	BaseModel
	TenantID        uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_tenant_number,priority:1"`
	Version         int                `gorm:"not null;default:1"`
	Number          string             `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	CustomerID      uuid.UUID          `gorm:"type:uuid;not null;index"`
	Type            string             `gorm:"type:varchar(30);not null"`
	Amount          decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	Tax             decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	AmountPaid      decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	Status          invoicing.Status   `gorm:"type:varchar(20);not null;default:'draft';index"`
	DueDate         time.Time          `gorm:"not null;index"`
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	Notes           string `gorm:"type:text"`
	SentAt          *time.Time
	SentVia         invoicing.Channel `gorm:"type:varchar(20)"`
	PaidAt          *time.Time
	PaymentMethodID *uuid.UUID             `gorm:"type:uuid"`
	PaymentRef      string                 `gorm:"type:varchar(100)"`
	LineItems       []InvoiceLineItemModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice, including any preloaded line items.
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		TenantAggregateRoot: tenantRoot(m.BaseModel, m.TenantID, m.Version),
		Number:              m.Number,
		CustomerID:          m.CustomerID,
		Type:                m.Type,
		Amount:              m.Amount,
		Tax:                 m.Tax,
		AmountPaid:          m.AmountPaid,
		Status:              m.Status,
		DueDate:             m.DueDate,
		PeriodStart:         m.PeriodStart,
		PeriodEnd:           m.PeriodEnd,
		Notes:               m.Notes,
		SentAt:              m.SentAt,
		SentVia:             m.SentVia,
		PaidAt:              m.PaidAt,
		PaymentMethodID:     m.PaymentMethodID,
		PaymentRef:          m.PaymentRef,
	}
	if len(m.LineItems) > 0 {
		inv.LineItems = make([]invoicing.LineItem, len(m.LineItems))
		for i := range m.LineItems {
			inv.LineItems[i] = m.LineItems[i].ToDomain()
		}
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainBaseEntity(inv.BaseEntity)
	m.TenantID = inv.TenantID
	m.Version = inv.Version
	m.Number = inv.Number
	m.CustomerID = inv.CustomerID
	m.Type = inv.Type
	m.Amount = inv.Amount
	m.Tax = inv.Tax
	m.AmountPaid = inv.AmountPaid
	m.Status = inv.Status
	m.DueDate = inv.DueDate
	m.PeriodStart = inv.PeriodStart
	m.PeriodEnd = inv.PeriodEnd
	m.Notes = inv.Notes
	m.SentAt = inv.SentAt
	m.SentVia = inv.SentVia
	m.PaidAt = inv.PaidAt
	m.PaymentMethodID = inv.PaymentMethodID
	m.PaymentRef = inv.PaymentRef
	m.LineItems = make([]InvoiceLineItemModel, len(inv.LineItems))
	for i := range inv.LineItems {
		m.LineItems[i] = *InvoiceLineItemModelFromDomain(&inv.LineItems[i])
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceLineItemModel is the persistence model for a frozen invoice line.
type InvoiceLineItemModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Description        string          `gorm:"type:varchar(500);not null"`
	ServiceType        string          `gorm:"type:varchar(30)"`
	Quantity           int             `gorm:"not null;default:1"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SettlementRecordID *uuid.UUID      `gorm:"type:uuid;index"`
	ChargeEntryID      *uuid.UUID      `gorm:"type:uuid"`
	SortOrder          int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (InvoiceLineItemModel) TableName() string {
	return "invoice_line_items"
}

// ToDomain converts the persistence model to a domain LineItem.
func (m *InvoiceLineItemModel) ToDomain() invoicing.LineItem {
	return invoicing.LineItem{
		ID:                 m.ID,
		InvoiceID:          m.InvoiceID,
		Description:        m.Description,
		ServiceType:        m.ServiceType,
		Quantity:           m.Quantity,
		UnitPrice:          m.UnitPrice,
		Amount:             m.Amount,
		SettlementRecordID: m.SettlementRecordID,
		ChargeEntryID:      m.ChargeEntryID,
		SortOrder:          m.SortOrder,
	}
}

// InvoiceLineItemModelFromDomain creates a new persistence model from a domain LineItem.
func InvoiceLineItemModelFromDomain(li *invoicing.LineItem) *InvoiceLineItemModel {
	return &InvoiceLineItemModel{
		ID:                 li.ID,
		InvoiceID:          li.InvoiceID,
		Description:        li.Description,
		ServiceType:        li.ServiceType,
		Quantity:           li.Quantity,
		UnitPrice:          li.UnitPrice,
		Amount:             li.Amount,
		SettlementRecordID: li.SettlementRecordID,
		ChargeEntryID:      li.ChargeEntryID,
		SortOrder:          li.SortOrder,
	}
}

// InvoiceScheduleModel is the persistence model for tenant and customer invoice schedules.
type InvoiceScheduleModel struct {
	ID         uuid.UUID           `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID           `gorm:"type:uuid;not null;index"`
	CustomerID *uuid.UUID          `gorm:"type:uuid;index"`
	Frequency  invoicing.Frequency `gorm:"type:varchar(20);not null;default:'monthly'"`
	DayOfWeek  *int
	DayOfMonth *int
	IsActive   bool       `gorm:"not null"`
	NextRunAt  *time.Time `gorm:"index"`
	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceScheduleModel) TableName() string {
	return "invoice_schedules"
}

// ToDomain converts the persistence model to a domain Schedule.
func (m *InvoiceScheduleModel) ToDomain() *invoicing.Schedule {
	return &invoicing.Schedule{
		ID:         m.ID,
		TenantID:   m.TenantID,
		CustomerID: m.CustomerID,
		Frequency:  m.Frequency,
		DayOfWeek:  m.DayOfWeek,
		DayOfMonth: m.DayOfMonth,
		IsActive:   m.IsActive,
		NextRunAt:  m.NextRunAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// InvoiceScheduleModelFromDomain creates a new persistence model from a domain Schedule.
func InvoiceScheduleModelFromDomain(s *invoicing.Schedule) *InvoiceScheduleModel {
	return &InvoiceScheduleModel{
		ID:         s.ID,
		TenantID:   s.TenantID,
		CustomerID: s.CustomerID,
		Frequency:  s.Frequency,
		DayOfWeek:  s.DayOfWeek,
		DayOfMonth: s.DayOfMonth,
		IsActive:   s.IsActive,
		NextRunAt:  s.NextRunAt,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}
