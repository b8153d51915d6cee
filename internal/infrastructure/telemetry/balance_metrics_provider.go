package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormBalanceMetricsProvider reads outstanding balances for the gauge
type GormBalanceMetricsProvider struct {
	db *gorm.DB
}

// NewGormBalanceMetricsProvider creates a provider over db
func NewGormBalanceMetricsProvider(db *gorm.DB) *GormBalanceMetricsProvider {
	return &GormBalanceMetricsProvider{db: db}
}

type tenantOutstandingRow struct {
	TenantID uuid.UUID
	Total    decimal.Decimal
}

// OutstandingByTenant sums positive balances per tenant
func (p *GormBalanceMetricsProvider) OutstandingByTenant(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []tenantOutstandingRow
	if err := p.db.WithContext(ctx).
		Table("account_balances").
		Select("tenant_id, COALESCE(SUM(balance), 0) AS total").
		Where("balance > 0").
		Group("tenant_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	totals := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.TenantID] = row.Total
	}
	return totals, nil
}
