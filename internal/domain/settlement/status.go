package settlement

// Mode selects the settlement path
type Mode string

const (
	ModeImmediate Mode = "immediate"
	ModeDeferred  Mode = "deferred"
)

// IsValid checks if the mode is valid
func (m Mode) IsValid() bool {
	return m == ModeImmediate || m == ModeDeferred
}

// RecordStatus is the status of a settlement record
type RecordStatus string

const (
	RecordStatusPaid     RecordStatus = "paid"
	RecordStatusFailed   RecordStatus = "failed"
	RecordStatusPending  RecordStatus = "pending"
	RecordStatusInvoiced RecordStatus = "invoiced"
)

var recordTransitions = map[RecordStatus][]RecordStatus{
	RecordStatusPending:  {RecordStatusInvoiced, RecordStatusPaid},
	RecordStatusInvoiced: {RecordStatusPaid, RecordStatusPending},
	RecordStatusFailed:   {RecordStatusPaid},
}

// IsValid checks if the status is valid
func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusPaid, RecordStatusFailed, RecordStatusPending, RecordStatusInvoiced:
		return true
	}
	return false
}

// IsTerminal returns true for paid records
func (s RecordStatus) IsTerminal() bool {
	return s == RecordStatusPaid
}

// CanTransitionTo checks the transition table
func (s RecordStatus) CanTransitionTo(next RecordStatus) bool {
	for _, allowed := range recordTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
