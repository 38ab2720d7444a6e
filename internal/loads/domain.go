package loads

import (
	"errors"
	"math"
	"time"
)

// PaymentMethod determines the fee withheld from a load's gross amount.
type PaymentMethod string

const (
	MethodDirectPay PaymentMethod = "Direct Pay"
	MethodFactored  PaymentMethod = "Factored"
)

// Load lifecycle statuses.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Load represents one freight movement and the amount owed for it.
type Load struct {
	ID            int64
	LoadID        string
	Carrier       string
	Customer      string
	PickupDate    time.Time
	DeliveryDate  time.Time
	GrossAmount   float64
	NetAmount     float64
	FeePercent    float64
	PaymentMethod PaymentMethod
	Status        Status
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("loads: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("loads: invalid input")
	// ErrDuplicateLoadID indicates the human-assigned load ID is taken.
	ErrDuplicateLoadID = errors.New("loads: load id already exists")
)

// FeePercentFor returns the fee withheld for a payment method.
// The percent is stored on the load at creation time; later changes to this
// table never touch historical rows.
func FeePercentFor(method PaymentMethod) float64 {
	switch method {
	case MethodDirectPay:
		return 12.0
	case MethodFactored:
		return 3.0
	default:
		return 0.0
	}
}

// ComputeNet applies a fee percent to a gross amount, rounded to cents.
func ComputeNet(gross, feePercent float64) float64 {
	net := gross * (1 - feePercent/100)
	return math.Round(net*100) / 100
}
