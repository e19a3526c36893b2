package domain

// ExecutionStatus is the state of an ExecutionRecord.
// Transitions: PENDING -> SUBMITTED -> {CONFIRMED, REJECTED, INDETERMINATE},
// INDETERMINATE -> {CONFIRMED, REJECTED} via reconciliation.
type ExecutionStatus string

const (
	StatusPending       ExecutionStatus = "PENDING"
	StatusSubmitted     ExecutionStatus = "SUBMITTED"
	StatusConfirmed     ExecutionStatus = "CONFIRMED"
	StatusRejected      ExecutionStatus = "REJECTED"
	StatusIndeterminate ExecutionStatus = "INDETERMINATE"
)

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

// CanTransition reports whether the state machine allows moving to next.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusSubmitted || next == StatusRejected
	case StatusSubmitted:
		return next == StatusConfirmed || next == StatusRejected || next == StatusIndeterminate
	case StatusIndeterminate:
		return next == StatusConfirmed || next == StatusRejected
	default:
		return false
	}
}

// ExecutionRecord is the system of record for "did this trade happen".
// It is created with status PENDING strictly before transaction submission
// and is the durability boundary for crash recovery.
type ExecutionRecord struct {
	IdempotencyKey string
	UserID         int64
	Mint           string
	Side           Side
	Venue          VenueKind
	Quote          QuoteCurrency

	AmountIn    uint64
	ExpectedOut uint64
	MinOut      uint64

	Status ExecutionStatus

	// Signature is set once the transaction has been submitted. A record
	// that carries a signature must never be resubmitted.
	Signature string

	// RealizedOut is set once the transaction is confirmed.
	RealizedOut uint64

	// FailureReason is set on REJECTED.
	FailureReason string

	CreatedAt   int64  // unix ms
	FinalizedAt *int64 // unix ms, nil until terminal
}
