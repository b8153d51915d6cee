package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/shared"
)

// MeterSlug identifies a usage meter within a tenant
type MeterSlug string

const (
	MeterPackageScans   MeterSlug = "package_scans"
	MeterStorageDays    MeterSlug = "storage_days"
	MeterMailScans      MeterSlug = "mail_scans"
	MeterShippingLabels MeterSlug = "shipping_labels"
	MeterMailForwarding MeterSlug = "mail_forwarding"
)

// UsageMeter counts a kind of service for usage-based plans
type UsageMeter struct {
	shared.BaseEntity
	TenantID uuid.UUID
	Slug     MeterSlug
	Name     string
	IsActive bool
}

// UsageRecord is an immutable usage row. Cost lives on the charge entry.
type UsageRecord struct {
	shared.BaseEntity
	MeterID    uuid.UUID
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	Quantity   int
	Period     string
	Metadata   map[string]any
}

// NewUsageRecord records quantity units against meter for the month of at
func NewUsageRecord(meter *UsageMeter, customerID uuid.UUID, quantity int, at time.Time) *UsageRecord {
	return &UsageRecord{
		BaseEntity: shared.NewBaseEntity(),
		MeterID:    meter.ID,
		TenantID:   meter.TenantID,
		CustomerID: customerID,
		Quantity:   quantity,
		Period:     at.Format("2006-01"),
		Metadata:   map[string]any{"source": "auto_charge_generation"},
	}
}
