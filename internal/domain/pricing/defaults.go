package pricing

import (
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Built-in rates for tenants that never provisioned a catalog.
var (
	DefaultReceivingRate = decimal.NewFromInt(3)
	DefaultStorageRate   = decimal.NewFromInt(1)
)

// TenantRates are the legacy per-tenant rate settings
type TenantRates struct {
	ReceivingFeeRate *decimal.Decimal
	StorageRate      *decimal.Decimal
}

// RateFor returns the legacy unit rate for an action.
// Only receiving and storage carry a rate; everything else is free.
func (r TenantRates) RateFor(key ActionKey) decimal.Decimal {
	switch key {
	case ActionPackageReceiving:
		return shared.DecimalOr(r.ReceivingFeeRate, DefaultReceivingRate)
	case ActionPackageStorage:
		return shared.DecimalOr(r.StorageRate, DefaultStorageRate)
	default:
		return decimal.Zero
	}
}

// DefaultPrice prices an action from the legacy rate table.
// No cost data exists there, so the full amount is markup.
func DefaultPrice(rates TenantRates, key ActionKey, quantity int) ResolvedPrice {
	if quantity < 1 {
		quantity = 1
	}
	rate := shared.RoundMoney(rates.RateFor(key))
	total := shared.RoundMoney(rate.Mul(decimal.NewFromInt(int64(quantity))))
	return ResolvedPrice{
		UnitRate:  rate,
		CostBasis: decimal.Zero,
		Markup:    total,
		Total:     total,
		Source:    SourceTenantDefault,
	}
}
