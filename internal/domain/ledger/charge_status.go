package ledger

// ChargeStatus is the lifecycle status of a charge entry
type ChargeStatus string

const (
	ChargeStatusPending  ChargeStatus = "pending"
	ChargeStatusPosted   ChargeStatus = "posted"
	ChargeStatusInvoiced ChargeStatus = "invoiced"
	ChargeStatusPaid     ChargeStatus = "paid"
	ChargeStatusVoid     ChargeStatus = "void"
)

var chargeTransitions = map[ChargeStatus][]ChargeStatus{
	ChargeStatusPending:  {ChargeStatusPosted, ChargeStatusPaid, ChargeStatusVoid},
	ChargeStatusPosted:   {ChargeStatusInvoiced, ChargeStatusPaid},
	ChargeStatusInvoiced: {ChargeStatusPaid, ChargeStatusPosted},
}

// IsValid checks if the status is valid
func (s ChargeStatus) IsValid() bool {
	switch s {
	case ChargeStatusPending, ChargeStatusPosted, ChargeStatusInvoiced, ChargeStatusPaid, ChargeStatusVoid:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are possible
func (s ChargeStatus) IsTerminal() bool {
	return s == ChargeStatusPaid || s == ChargeStatusVoid
}

// IsSettled returns true once the settlement engine has consumed the entry
func (s ChargeStatus) IsSettled() bool {
	return s != ChargeStatusPending
}

// CanTransitionTo checks the transition table
func (s ChargeStatus) CanTransitionTo(next ChargeStatus) bool {
	for _, allowed := range chargeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
