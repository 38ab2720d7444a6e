package recon

import (
	"context"
	"time"

	"github.com/openfreight/linehaul/internal/invoices"
	"github.com/openfreight/linehaul/internal/loads"
	"github.com/openfreight/linehaul/internal/payments"
)

// RepositoryPort describes the read side used by the service.
type RepositoryPort interface {
	// Candidate queries. All exclude loads that already carry a live link.
	FindCandidatesWindow(ctx context.Context, carrier string, from, to time.Time) ([]loads.Load, error)
	FindCandidatesDay(ctx context.Context, carrier string, day time.Time) ([]loads.Load, error)
	FindCandidatesGeneric(ctx context.Context, entity string, until time.Time, limit int) ([]loads.Load, error)

	ListOpenPayments(ctx context.Context) ([]payments.Payment, error)
	ListLinks(ctx context.Context, paymentID int64) ([]ReconciliationLink, error)
	UnreconciledByCarrier(ctx context.Context) ([]CarrierSummary, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the write side, valid only inside WithTx. The link
// insert must enforce one live link per load atomically; a unique-violation
// surfaces as ErrAlreadyLinked.
type TxRepository interface {
	LoadsForUpdate(ctx context.Context, ids []int64) ([]loads.Load, error)
	LinkedLoadIDs(ctx context.Context, ids []int64) ([]int64, error)
	InsertReconciledPayment(ctx context.Context, draft PaymentDraft, at time.Time) (int64, error)
	MarkPaymentReconciled(ctx context.Context, paymentID int64, at time.Time) error
	InsertLink(ctx context.Context, link ReconciliationLink) error

	FindInvoiceMatch(ctx context.Context, amount float64, onOrBefore time.Time) (invoices.Invoice, bool, error)
	MarkInvoicePaid(ctx context.Context, invoiceID int64, paidDate time.Time) error
}

// CarrierSummary is one row of the unreconciled rollup.
type CarrierSummary struct {
	Carrier        string
	LoadCount      int
	TotalAmount    float64
	OldestDelivery time.Time
}
