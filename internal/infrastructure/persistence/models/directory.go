package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/directory"
	"github.com/shopspring/decimal"
)

// DirectoryTenantModel is the billing read model of a mail-center tenant.
type DirectoryTenantModel struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key"`
	Name             string           `gorm:"type:varchar(200);not null"`
	Status           string           `gorm:"type:varchar(20);not null;default:'active';index"`
	ReceivingFeeRate *decimal.Decimal `gorm:"type:decimal(18,4)"`
	StorageRate      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	StorageFreeDays  int              `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (DirectoryTenantModel) TableName() string {
	return "directory_tenants"
}

// ToDomain converts the read model to a directory Tenant.
func (m *DirectoryTenantModel) ToDomain() *directory.Tenant {
	return &directory.Tenant{
		ID:               m.ID,
		Name:             m.Name,
		Status:           m.Status,
		ReceivingFeeRate: m.ReceivingFeeRate,
		StorageRate:      m.StorageRate,
		StorageFreeDays:  m.StorageFreeDays,
	}
}

// DirectoryCustomerModel is the billing read model of a mailbox holder.
type DirectoryCustomerModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName string    `gorm:"type:varchar(100)"`
	LastName  string    `gorm:"type:varchar(100)"`
	MailboxID string    `gorm:"type:varchar(50)"`
	Segment   string    `gorm:"type:varchar(30)"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (DirectoryCustomerModel) TableName() string {
	return "directory_customers"
}

// ToDomain converts the read model to a directory Customer.
func (m *DirectoryCustomerModel) ToDomain() *directory.Customer {
	return &directory.Customer{
		ID:        m.ID,
		TenantID:  m.TenantID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		MailboxID: m.MailboxID,
		Segment:   m.Segment,
		Status:    m.Status,
	}
}

// DirectoryPackageModel is the billing read model of a package held at the counter.
type DirectoryPackageModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index:idx_directory_package_held,priority:1"`
	CustomerID     uuid.UUID `gorm:"type:uuid;not null;index"`
	MailboxID      string    `gorm:"type:varchar(50)"`
	TrackingNumber string    `gorm:"type:varchar(100)"`
	Status         string    `gorm:"type:varchar(20);not null;index:idx_directory_package_held,priority:2"`
	CheckedInAt    time.Time `gorm:"not null;index:idx_directory_package_held,priority:3"`
}

// TableName returns the table name for GORM
func (DirectoryPackageModel) TableName() string {
	return "directory_packages"
}

// ToDomain converts the read model to a directory HeldPackage.
func (m *DirectoryPackageModel) ToDomain() directory.HeldPackage {
	return directory.HeldPackage{
		ID:             m.ID,
		TenantID:       m.TenantID,
		CustomerID:     m.CustomerID,
		MailboxID:      m.MailboxID,
		TrackingNumber: m.TrackingNumber,
		Status:         m.Status,
		CheckedInAt:    m.CheckedInAt,
	}
}

// AllModels lists every billing model for AutoMigrate in tests.
func AllModels() []any {
	return []any{
		&PricedActionModel{},
		&PriceOverrideModel{},
		&ChargeEntryModel{},
		&UsageMeterModel{},
		&UsageRecordModel{},
		&SettlementRecordModel{},
		&AccountBalanceModel{},
		&BillingConfigModel{},
		&BillingProfileModel{},
		&PaymentMethodModel{},
		&InvoiceModel{},
		&InvoiceLineItemModel{},
		&InvoiceScheduleModel{},
		&DirectoryTenantModel{},
		&DirectoryCustomerModel{},
		&DirectoryPackageModel{},
	}
}
