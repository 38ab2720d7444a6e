package invoices

import (
	"context"
	"time"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListOpen(ctx context.Context) ([]Invoice, error)
}

// Service manages the invoice registry. Settling an invoice (OPEN -> PAID)
// happens only inside the auto-matcher's transaction, never here.
type Service struct {
	repo RepositoryPort
}

// NewService constructs an invoice service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInvoiceInput describes the creation payload.
type CreateInvoiceInput struct {
	Number      string
	Customer    string
	Total       float64
	InvoiceDate time.Time
}

// CreateInvoice registers a new open invoice.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if input.Number == "" || input.Customer == "" || input.Total <= 0 || input.InvoiceDate.IsZero() {
		return Invoice{}, ErrValidation
	}
	return s.repo.CreateInvoice(ctx, Invoice{
		Number:      input.Number,
		Customer:    input.Customer,
		Total:       input.Total,
		InvoiceDate: input.InvoiceDate,
	})
}

// GetInvoice fetches a single invoice.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListOpen returns invoices still awaiting payment.
func (s *Service) ListOpen(ctx context.Context) ([]Invoice, error) {
	return s.repo.ListOpen(ctx)
}
