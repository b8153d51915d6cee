package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/shared"
)

// Frequency is how often a schedule generates invoices
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyOnDemand Frequency = "on_demand"
)

// IsValid checks if the frequency is valid
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyOnDemand:
		return true
	}
	return false
}

// Schedule drives periodic invoice generation for a tenant, or for one
// customer when CustomerID is set.
type Schedule struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	CustomerID *uuid.UUID
	Frequency  Frequency
	DayOfWeek  *int
	DayOfMonth *int
	IsActive   bool
	NextRunAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewDefaultSchedule is monthly on the 1st, first run next month
func NewDefaultSchedule(tenantID uuid.UUID, customerID *uuid.UUID, now time.Time) *Schedule {
	day := 1
	s := &Schedule{
		ID:         uuid.New(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Frequency:  FrequencyMonthly,
		DayOfMonth: &day,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.NextRunAt = s.nextAfter(now)
	return s
}

// ScheduleUpdate carries optional schedule changes
type ScheduleUpdate struct {
	Frequency  *Frequency
	DayOfWeek  *int
	DayOfMonth *int
	IsActive   *bool
}

// Apply validates and applies an update, then recomputes the next run
func (s *Schedule) Apply(u ScheduleUpdate, now time.Time) error {
	if u.Frequency != nil {
		if !u.Frequency.IsValid() {
			return shared.NewDomainError("INVALID_FREQUENCY", "Frequency must be weekly, biweekly, monthly or on_demand")
		}
		s.Frequency = *u.Frequency
	}
	if u.DayOfWeek != nil {
		if *u.DayOfWeek < 0 || *u.DayOfWeek > 6 {
			return shared.NewDomainError("INVALID_DAY_OF_WEEK", "Day of week must be between 0 and 6")
		}
		s.DayOfWeek = u.DayOfWeek
	}
	if u.DayOfMonth != nil {
		if *u.DayOfMonth < 1 || *u.DayOfMonth > 31 {
			return shared.NewDomainError("INVALID_DAY_OF_MONTH", "Day of month must be between 1 and 31")
		}
		s.DayOfMonth = u.DayOfMonth
	}
	if u.IsActive != nil {
		s.IsActive = *u.IsActive
	}
	s.UpdatedAt = now
	s.NextRunAt = s.nextAfter(now)
	return nil
}

// IsDue reports whether the schedule should run at now
func (s *Schedule) IsDue(now time.Time) bool {
	return s.IsActive && s.NextRunAt != nil && !now.Before(*s.NextRunAt)
}

// Advance moves the next run past now after a run completes
func (s *Schedule) Advance(now time.Time) {
	s.UpdatedAt = now
	s.NextRunAt = s.nextAfter(now)
}

func (s *Schedule) nextAfter(now time.Time) *time.Time {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var next time.Time
	switch s.Frequency {
	case FrequencyWeekly, FrequencyBiweekly:
		weekday := int(time.Monday)
		if s.DayOfWeek != nil {
			weekday = *s.DayOfWeek
		}
		diff := (weekday - int(start.Weekday()) + 7) % 7
		if diff == 0 {
			diff = 7
		}
		next = start.AddDate(0, 0, diff)
		if s.Frequency == FrequencyBiweekly {
			next = next.AddDate(0, 0, 7)
		}
	case FrequencyMonthly:
		day := 1
		if s.DayOfMonth != nil {
			day = *s.DayOfMonth
		}
		firstOfNext := time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, start.Location())
		next = firstOfNext.AddDate(0, 0, min(day, daysIn(firstOfNext))-1)
	default:
		return nil
	}
	return &next
}

func daysIn(month time.Time) int {
	return time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, month.Location()).Day()
}
