package invoices

import (
	"errors"
	"time"
)

// Invoice lifecycle statuses.
type Status string

const (
	StatusOpen Status = "OPEN"
	StatusPaid Status = "PAID"
	StatusVoid Status = "VOID"
)

// Invoice is a billed receivable the auto-matcher can settle.
type Invoice struct {
	ID          int64
	Number      string
	Customer    string
	Total       float64
	Status      Status
	InvoiceDate time.Time
	PaidDate    time.Time
	CreatedAt   time.Time
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("invoices: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("invoices: invalid input")
	// ErrDuplicateNumber indicates the invoice number is taken.
	ErrDuplicateNumber = errors.New("invoices: number already exists")
)
