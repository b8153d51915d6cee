package pricing

import (
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Source records which rule produced a resolved price
type Source string

const (
	SourceCustomerOverride Source = "customer_override"
	SourceSegmentOverride  Source = "segment_override"
	SourceActionPrice      Source = "action_price"
	SourceTenantDefault    Source = "tenant_default"
	SourceShipment         Source = "shipment"
)

// ResolvedPrice is the priced outcome for one billable occurrence
type ResolvedPrice struct {
	UnitRate  decimal.Decimal `json:"unit_rate"`
	CostBasis decimal.Decimal `json:"cost_basis"`
	Markup    decimal.Decimal `json:"markup"`
	Total     decimal.Decimal `json:"total"`
	Source    Source          `json:"source"`
}

// Compute prices quantity units of action, layering override on top.
// Override fields that are nil fall back to the action's values.
// Markup is floored at zero: a below-cost sale records no markup.
func Compute(action *PricedAction, override *PriceOverride, quantity int, source Source) ResolvedPrice {
	if quantity < 1 {
		quantity = 1
	}
	var o PriceOverride
	if override != nil {
		o = *override
	}
	retail := shared.DecimalOr(o.RetailPrice, action.RetailPrice)
	cogs := shared.DecimalOr(o.Cogs, action.Cogs)
	q := decimal.NewFromInt(int64(quantity))

	if action.HasTieredPricing && quantity > 1 {
		extra := decimal.NewFromInt(int64(quantity - 1))

		first := firstSet(o.FirstUnitPrice, action.FirstUnitPrice, retail)
		additional := firstSet(o.AdditionalUnitPrice, action.AdditionalUnitPrice, retail)
		total := shared.RoundMoney(first.Add(additional.Mul(extra)))

		firstCogs := firstSet(o.CogsFirstUnit, action.CogsFirstUnit, cogs)
		additionalCogs := firstSet(o.CogsAdditionalUnit, action.CogsAdditionalUnit, cogs)
		cost := shared.RoundMoney(firstCogs.Add(additionalCogs.Mul(extra)))

		return ResolvedPrice{
			UnitRate:  shared.RoundMoney(total.Div(q)),
			CostBasis: cost,
			Markup:    shared.NonNegative(total.Sub(cost)),
			Total:     total,
			Source:    source,
		}
	}

	total := shared.RoundMoney(retail.Mul(q))
	cost := shared.RoundMoney(cogs.Mul(q))
	return ResolvedPrice{
		UnitRate:  shared.RoundMoney(retail),
		CostBasis: cost,
		Markup:    shared.NonNegative(total.Sub(cost)),
		Total:     total,
		Source:    source,
	}
}

// ForCustomer picks the override that applies to a customer: a customer
// override wins over a segment override. The returned source names the
// winning rule.
func ForCustomer(overrides []PriceOverride, customerID, segment string) (*PriceOverride, Source) {
	var segmentMatch *PriceOverride
	for i := range overrides {
		o := &overrides[i]
		switch {
		case o.TargetType == TargetCustomer && o.TargetValue == customerID:
			return o, SourceCustomerOverride
		case segment != "" && o.TargetType == TargetSegment && o.TargetValue == segment && segmentMatch == nil:
			segmentMatch = o
		}
	}
	if segmentMatch != nil {
		return segmentMatch, SourceSegmentOverride
	}
	return nil, SourceActionPrice
}

func firstSet(override, base *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	return shared.DecimalOr(override, shared.DecimalOr(base, fallback))
}
