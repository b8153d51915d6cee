package invoicing

// Status is the status of an invoice
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
	StatusVoid          Status = "void"
)

var transitions = map[Status][]Status{
	StatusDraft:         {StatusSent, StatusPartiallyPaid, StatusPaid, StatusVoid},
	StatusSent:          {StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusVoid},
	StatusOverdue:       {StatusPartiallyPaid, StatusPaid, StatusVoid},
	StatusPartiallyPaid: {StatusPaid, StatusOverdue, StatusVoid},
}

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusVoid:
		return true
	}
	return false
}

// IsTerminal returns true for paid and void invoices
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusVoid
}

// IsCollectable returns true for invoices auto-pay should collect
func (s Status) IsCollectable() bool {
	return s == StatusSent || s == StatusOverdue
}

// CanTransitionTo checks the transition table
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Channel is how an invoice was delivered
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
	ChannelPrint Channel = "print"
)

// IsValid checks if the channel is valid
func (c Channel) IsValid() bool {
	return c == ChannelEmail || c == ChannelInApp || c == ChannelPrint
}
