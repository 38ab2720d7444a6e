package payments

import (
	"context"
	"strconv"
	"time"

	"github.com/openfreight/linehaul/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	CreatePayment(ctx context.Context, p Payment) (Payment, error)
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context, onlyOpen bool, limit int) ([]Payment, error)
}

// AuditPort records operator actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the payment record store.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs a payment service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// RecordPaymentInput describes an incoming deposit.
type RecordPaymentInput struct {
	Amount       float64
	PaymentDate  time.Time
	PayingEntity string
	Reference    string
	Notes        string
	ActorID      int64
}

// RecordPayment stores a deposit with reconciled=false. Reconciliation is a
// separate, explicit step owned by the recon package.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (Payment, error) {
	if input.Amount <= 0 || input.PayingEntity == "" || input.PaymentDate.IsZero() {
		return Payment{}, ErrValidation
	}
	created, err := s.repo.CreatePayment(ctx, Payment{
		Amount:       input.Amount,
		PaymentDate:  input.PaymentDate,
		PayingEntity: input.PayingEntity,
		Reference:    input.Reference,
		Notes:        input.Notes,
		CreatedBy:    input.ActorID,
	})
	if err != nil {
		return Payment{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "PAYMENT_RECORD",
			Entity:   "payment",
			EntityID: strconv.FormatInt(created.ID, 10),
			Meta:     map[string]any{"amount": created.Amount, "entity": created.PayingEntity},
		})
	}
	return created, nil
}

// GetPayment fetches a single payment.
func (s *Service) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// ListPayments returns recent payments, optionally restricted to open ones.
func (s *Service) ListPayments(ctx context.Context, onlyOpen bool, limit int) ([]Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListPayments(ctx, onlyOpen, limit)
}
