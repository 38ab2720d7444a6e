package recon

import (
	"errors"
	"fmt"
	"time"
)

// Tolerance is the maximum acceptable gap between a payment amount and the
// summed net amounts of its selected loads. One cent covers floating rounding
// on fee math; it is not a fuzziness knob.
const Tolerance = 0.01

// PaymentDraft carries an operator's in-progress payment entry into
// Reconcile. Nothing is persisted until Reconcile commits, so abandoning a
// draft has no side effects.
type PaymentDraft struct {
	Amount       float64
	PaymentDate  time.Time
	PayingEntity string
	Reference    string
	Notes        string
	ActorID      int64
}

// ReconciliationLink binds one payment to one load.
type ReconciliationLink struct {
	ID            int64
	PaymentID     int64
	LoadID        int64
	MatchedAmount float64
	ReconciledBy  int64
	CreatedAt     time.Time
	VoidedAt      *time.Time
}

// MatchReport summarises one auto-match batch run.
type MatchReport struct {
	TotalCandidates int
	Matched         int
	Unmatched       int
}

// AmountMismatchError reports a numerically wrong selection. The difference
// is surfaced so the operator can add or remove a load; the engine never
// adjusts amounts on its own.
type AmountMismatchError struct {
	Expected   float64
	Actual     float64
	Difference float64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("recon: selected loads total %.2f, payment is %.2f (off by %.2f)", e.Actual, e.Expected, e.Difference)
}

var (
	// ErrEmptySelection indicates Reconcile was called without loads.
	ErrEmptySelection = errors.New("recon: no loads selected")
	// ErrAlreadyLinked indicates a selected load was reconciled by someone
	// else between selection and commit.
	ErrAlreadyLinked = errors.New("recon: load already reconciled")
	// ErrLoadNotFound indicates a selected load id does not exist.
	ErrLoadNotFound = errors.New("recon: load not found")
	// ErrInvalidDraft indicates a payment draft missing amount or entity.
	ErrInvalidDraft = errors.New("recon: invalid payment draft")
)
