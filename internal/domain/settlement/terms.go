package settlement

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPaymentTermDays applies when neither customer nor tenant set terms
const DefaultPaymentTermDays = 30

// BillingConfig is a tenant's billing model configuration
type BillingConfig struct {
	TenantID             uuid.UUID
	TimeOfServiceEnabled bool
	UsageBasedEnabled    bool
	DefaultMode          Mode
	PaymentWindowDays    *int
	AutoInvoice          bool
	UpdatedAt            time.Time
}

// BillingProfile is a customer's billing preferences
type BillingProfile struct {
	TenantID        uuid.UUID
	CustomerID      uuid.UUID
	Mode            Mode
	PaymentTermDays *int
	AutoPayEnabled  bool
	AutoPayDay      *int
	UpdatedAt       time.Time
}

// Terms resolves settlement mode and payment terms for one customer.
// Either side may be nil when it was never configured.
type Terms struct {
	Config  *BillingConfig
	Profile *BillingProfile
}

// Mode returns customer override, else tenant default, else immediate
func (t Terms) Mode() Mode {
	if t.Profile != nil && t.Profile.Mode.IsValid() {
		return t.Profile.Mode
	}
	if t.Config != nil && t.Config.DefaultMode.IsValid() {
		return t.Config.DefaultMode
	}
	return ModeImmediate
}

// PaymentTermDays returns customer terms, else tenant window, else 30
func (t Terms) PaymentTermDays() int {
	if t.Profile != nil && t.Profile.PaymentTermDays != nil {
		return *t.Profile.PaymentTermDays
	}
	if t.Config != nil && t.Config.PaymentWindowDays != nil {
		return *t.Config.PaymentWindowDays
	}
	return DefaultPaymentTermDays
}

// DueDate is now plus the payment terms
func (t Terms) DueDate(now time.Time) time.Time {
	return now.AddDate(0, 0, t.PaymentTermDays())
}

// AutoPayDueOn reports whether the profile's auto-pay day is today. A day
// past the end of a short month falls on that month's last day.
func (p *BillingProfile) AutoPayDueOn(today time.Time) bool {
	if !p.AutoPayEnabled || p.AutoPayDay == nil || *p.AutoPayDay < 1 {
		return false
	}
	lastDay := time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, today.Location()).Day()
	return min(*p.AutoPayDay, lastDay) == today.Day()
}
