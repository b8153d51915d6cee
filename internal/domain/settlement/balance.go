package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultCreditLimit applies to balances opened by a deferred charge
var DefaultCreditLimit = decimal.NewFromInt(500)

// AccountBalance is the maintained total of a customer's outstanding
// deferred charges. It is only changed inside the transaction that
// creates or settles the deferred records it counts.
type AccountBalance struct {
	shared.TenantAggregateRoot
	CustomerID  uuid.UUID
	Balance     decimal.Decimal
	CreditLimit decimal.Decimal
}

// NewAccountBalance opens a zero balance
func NewAccountBalance(tenantID, customerID uuid.UUID, creditLimit decimal.Decimal) *AccountBalance {
	return &AccountBalance{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CustomerID:          customerID,
		Balance:             decimal.Zero,
		CreditLimit:         creditLimit,
	}
}

// Increment adds a deferred amount
func (b *AccountBalance) Increment(amount decimal.Decimal) {
	b.Balance = shared.RoundMoney(b.Balance.Add(amount))
	b.Touch()
}

// Decrement removes a settled amount
func (b *AccountBalance) Decrement(amount decimal.Decimal) {
	b.Balance = shared.RoundMoney(b.Balance.Sub(amount))
	b.Touch()
}

// AvailableCredit is the room left under the credit limit
func (b *AccountBalance) AvailableCredit() decimal.Decimal {
	return shared.NonNegative(b.CreditLimit.Sub(b.Balance))
}

// IsOverLimit reports whether the balance exceeds the credit limit
func (b *AccountBalance) IsOverLimit() bool {
	return b.Balance.GreaterThan(b.CreditLimit)
}

// BalanceSummary is the read view of a customer's account
type BalanceSummary struct {
	CustomerID       uuid.UUID       `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	MailboxID        string          `json:"mailbox_id"`
	AccountBalance   decimal.Decimal `json:"account_balance"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	PendingCharges   decimal.Decimal `json:"pending_charges"`
	TotalOwed        decimal.Decimal `json:"total_owed"`
	OldestUnpaidDate *time.Time      `json:"oldest_unpaid_date,omitempty"`
}
