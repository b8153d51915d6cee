package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/shopspring/decimal"
)

// SettlementRecordModel is the persistence model for the settlement Record aggregate root.
type SettlementRecordModel struct {
	TenantAggregateModel
	CustomerID        uuid.UUID               `gorm:"type:uuid;not null;index:idx_settlement_customer_status,priority:1"`
	Mode              settlement.Mode         `gorm:"type:varchar(20);not null;index"`
	Description       string                  `gorm:"type:varchar(500);not null"`
	Amount            decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Tax               decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	Total             decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Status            settlement.RecordStatus `gorm:"type:varchar(20);not null;index:idx_settlement_customer_status,priority:2"`
	PaymentMethodID   *uuid.UUID              `gorm:"type:uuid"`
	PaymentMethodType string                  `gorm:"type:varchar(20)"`
	PaymentRef        string                  `gorm:"type:varchar(100)"`
	FailureReason     string                  `gorm:"type:varchar(500)"`
	RetryCount        int                     `gorm:"not null;default:0"`
	LastRetryAt       *time.Time
	DueDate           *time.Time `gorm:"index"`
	PaidAt            *time.Time
	ChargeEntryID     *uuid.UUID `gorm:"type:uuid;index"`
	InvoiceID         *uuid.UUID `gorm:"type:uuid;index"`
	FallbackOf        *uuid.UUID `gorm:"type:uuid;index"`
	ReferenceType     string     `gorm:"type:varchar(30)"`
	ReferenceID       string     `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (SettlementRecordModel) TableName() string {
	return "settlement_records"
}

// ToDomain converts the persistence model to a domain settlement Record.
func (m *SettlementRecordModel) ToDomain() *settlement.Record {
	return &settlement.Record{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		Mode:                m.Mode,
		Description:         m.Description,
		Amount:              m.Amount,
		Tax:                 m.Tax,
		Total:               m.Total,
		Status:              m.Status,
		PaymentMethodID:     m.PaymentMethodID,
		PaymentMethodType:   m.PaymentMethodType,
		PaymentRef:          m.PaymentRef,
		FailureReason:       m.FailureReason,
		RetryCount:          m.RetryCount,
		LastRetryAt:         m.LastRetryAt,
		DueDate:             m.DueDate,
		PaidAt:              m.PaidAt,
		ChargeEntryID:       m.ChargeEntryID,
		InvoiceID:           m.InvoiceID,
		FallbackOf:          m.FallbackOf,
		ReferenceType:       m.ReferenceType,
		ReferenceID:         m.ReferenceID,
	}
}

// FromDomain populates the persistence model from a domain settlement Record.
func (m *SettlementRecordModel) FromDomain(r *settlement.Record) {
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	m.CustomerID = r.CustomerID
	m.Mode = r.Mode
	m.Description = r.Description
	m.Amount = r.Amount
	m.Tax = r.Tax
	m.Total = r.Total
	m.Status = r.Status
	m.PaymentMethodID = r.PaymentMethodID
	m.PaymentMethodType = r.PaymentMethodType
	m.PaymentRef = r.PaymentRef
	m.FailureReason = r.FailureReason
	m.RetryCount = r.RetryCount
	m.LastRetryAt = r.LastRetryAt
	m.DueDate = r.DueDate
	m.PaidAt = r.PaidAt
	m.ChargeEntryID = r.ChargeEntryID
	m.InvoiceID = r.InvoiceID
	m.FallbackOf = r.FallbackOf
	m.ReferenceType = r.ReferenceType
	m.ReferenceID = r.ReferenceID
}

// SettlementRecordModelFromDomain creates a new persistence model from a domain settlement Record.
func SettlementRecordModelFromDomain(r *settlement.Record) *SettlementRecordModel {
	m := &SettlementRecordModel{}
	m.FromDomain(r)
	return m
}

// AccountBalanceModel is the persistence model for a customer's running balance.
type AccountBalanceModel struct {
	BaseModel
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_account_balance_customer,priority:1"`
	CustomerID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_account_balance_customer,priority:2"`
	Version     int             `gorm:"not null;default:1"`
	Balance     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreditLimit decimal.Decimal `gorm:"type:decimal(18,4);not null;default:500"`
}

// TableName returns the table name for GORM
func (AccountBalanceModel) TableName() string {
	return "account_balances"
}

// ToDomain converts the persistence model to a domain AccountBalance.
func (m *AccountBalanceModel) ToDomain() *settlement.AccountBalance {
	return &settlement.AccountBalance{
		TenantAggregateRoot: tenantRoot(m.BaseModel, m.TenantID, m.Version),
		CustomerID:          m.CustomerID,
		Balance:             m.Balance,
		CreditLimit:         m.CreditLimit,
	}
}

// AccountBalanceModelFromDomain creates a new persistence model from a domain AccountBalance.
func AccountBalanceModelFromDomain(b *settlement.AccountBalance) *AccountBalanceModel {
	m := &AccountBalanceModel{
		TenantID:    b.TenantID,
		CustomerID:  b.CustomerID,
		Version:     b.Version,
		Balance:     b.Balance,
		CreditLimit: b.CreditLimit,
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// BillingConfigModel holds the tenant-wide billing configuration.
type BillingConfigModel struct {
	TenantID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	TimeOfServiceEnabled bool            `gorm:"not null;default:false"`
	UsageBasedEnabled    bool            `gorm:"not null;default:false"`
	DefaultMode          settlement.Mode `gorm:"type:varchar(20);not null;default:'immediate'"`
	PaymentWindowDays    *int
	AutoInvoice          bool      `gorm:"not null;default:false"`
	UpdatedAt            time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BillingConfigModel) TableName() string {
	return "billing_configs"
}

// ToDomain converts the persistence model to a domain BillingConfig.
func (m *BillingConfigModel) ToDomain() *settlement.BillingConfig {
	return &settlement.BillingConfig{
		TenantID:             m.TenantID,
		TimeOfServiceEnabled: m.TimeOfServiceEnabled,
		UsageBasedEnabled:    m.UsageBasedEnabled,
		DefaultMode:          m.DefaultMode,
		PaymentWindowDays:    m.PaymentWindowDays,
		AutoInvoice:          m.AutoInvoice,
		UpdatedAt:            m.UpdatedAt,
	}
}

// BillingConfigModelFromDomain creates a new persistence model from a domain BillingConfig.
func BillingConfigModelFromDomain(c *settlement.BillingConfig) *BillingConfigModel {
	return &BillingConfigModel{
		TenantID:             c.TenantID,
		TimeOfServiceEnabled: c.TimeOfServiceEnabled,
		UsageBasedEnabled:    c.UsageBasedEnabled,
		DefaultMode:          c.DefaultMode,
		PaymentWindowDays:    c.PaymentWindowDays,
		AutoInvoice:          c.AutoInvoice,
		UpdatedAt:            c.UpdatedAt,
	}
}

// BillingProfileModel holds per-customer billing overrides.
type BillingProfileModel struct {
	TenantID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	CustomerID      uuid.UUID       `gorm:"type:uuid;primary_key"`
	Mode            settlement.Mode `gorm:"type:varchar(20)"`
	PaymentTermDays *int
	AutoPayEnabled  bool `gorm:"not null;default:false;index"`
	AutoPayDay      *int
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BillingProfileModel) TableName() string {
	return "billing_profiles"
}

// ToDomain converts the persistence model to a domain BillingProfile.
func (m *BillingProfileModel) ToDomain() *settlement.BillingProfile {
	return &settlement.BillingProfile{
		TenantID:        m.TenantID,
		CustomerID:      m.CustomerID,
		Mode:            m.Mode,
		PaymentTermDays: m.PaymentTermDays,
		AutoPayEnabled:  m.AutoPayEnabled,
		AutoPayDay:      m.AutoPayDay,
		UpdatedAt:       m.UpdatedAt,
	}
}

// BillingProfileModelFromDomain creates a new persistence model from a domain BillingProfile.
func BillingProfileModelFromDomain(p *settlement.BillingProfile) *BillingProfileModel {
	return &BillingProfileModel{
		TenantID:        p.TenantID,
		CustomerID:      p.CustomerID,
		Mode:            p.Mode,
		PaymentTermDays: p.PaymentTermDays,
		AutoPayEnabled:  p.AutoPayEnabled,
		AutoPayDay:      p.AutoPayDay,
		UpdatedAt:       p.UpdatedAt,
	}
}

// PaymentMethodModel is the persistence model for a stored customer payment method.
type PaymentMethodModel struct {
	ID         uuid.UUID               `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID               `gorm:"type:uuid;not null;index:idx_payment_method_customer,priority:1"`
	CustomerID uuid.UUID               `gorm:"type:uuid;not null;index:idx_payment_method_customer,priority:2"`
	Type       settlement.MethodType   `gorm:"type:varchar(20);not null"`
	Label      string                  `gorm:"type:varchar(100)"`
	IsDefault  bool                    `gorm:"not null;default:false"`
	Status     settlement.MethodStatus `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt  time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentMethodModel) TableName() string {
	return "payment_methods"
}

// ToDomain converts the persistence model to a domain PaymentMethod.
func (m *PaymentMethodModel) ToDomain() *settlement.PaymentMethod {
	return &settlement.PaymentMethod{
		ID:         m.ID,
		TenantID:   m.TenantID,
		CustomerID: m.CustomerID,
		Type:       m.Type,
		Label:      m.Label,
		IsDefault:  m.IsDefault,
		Status:     m.Status,
	}
}

// PaymentMethodModelFromDomain creates a new persistence model from a domain PaymentMethod.
func PaymentMethodModelFromDomain(p *settlement.PaymentMethod) *PaymentMethodModel {
	return &PaymentMethodModel{
		ID:         p.ID,
		TenantID:   p.TenantID,
		CustomerID: p.CustomerID,
		Type:       p.Type,
		Label:      p.Label,
		IsDefault:  p.IsDefault,
		Status:     p.Status,
	}
}
