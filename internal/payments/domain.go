package payments

import (
	"errors"
	"time"
)

// Payment represents one incoming deposit awaiting reconciliation.
type Payment struct {
	ID           int64
	Amount       float64
	PaymentDate  time.Time
	PayingEntity string
	Reference    string
	Notes        string
	Reconciled   bool
	ReconciledAt time.Time
	CreatedBy    int64
	CreatedAt    time.Time
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("payments: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("payments: invalid input")
)
