package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryInvoiceRepo struct {
	invoices map[int64]Invoice
	byNumber map[string]int64
	nextID   int64
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{invoices: make(map[int64]Invoice), byNumber: make(map[string]int64)}
}

func (r *memoryInvoiceRepo) CreateInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	if _, ok := r.byNumber[inv.Number]; ok {
		return Invoice{}, ErrDuplicateNumber
	}
	r.nextID++
	inv.ID = r.nextID
	inv.Status = StatusOpen
	r.invoices[inv.ID] = inv
	r.byNumber[inv.Number] = inv.ID
	return inv, nil
}

func (r *memoryInvoiceRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (r *memoryInvoiceRepo) ListOpen(context.Context) ([]Invoice, error) {
	var items []Invoice
	for _, inv := range r.invoices {
		if inv.Status == StatusOpen {
			items = append(items, inv)
		}
	}
	return items, nil
}

func TestCreateInvoice(t *testing.T) {
	svc := NewService(newMemoryInvoiceRepo())

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Number:      "INV-2025-001",
		Customer:    "Acme Distribution",
		Total:       500,
		InvoiceDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, inv.Status)
	require.NotZero(t, inv.ID)
}

func TestCreateInvoiceRejectsInvalid(t *testing.T) {
	svc := NewService(newMemoryInvoiceRepo())

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{Number: "INV-1"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Number: "INV-1", Customer: "Acme Distribution", Total: -10,
		InvoiceDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateInvoiceDuplicateNumber(t *testing.T) {
	svc := NewService(newMemoryInvoiceRepo())
	input := CreateInvoiceInput{
		Number:      "INV-2025-002",
		Customer:    "Acme Distribution",
		Total:       750,
		InvoiceDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.CreateInvoice(context.Background(), input)
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestListOpenSkipsPaid(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo)

	open, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Number: "INV-OPEN", Customer: "Acme Distribution", Total: 100,
		InvoiceDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	paid, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Number: "INV-PAID", Customer: "Acme Distribution", Total: 200,
		InvoiceDate: time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	settled := repo.invoices[paid.ID]
	settled.Status = StatusPaid
	repo.invoices[paid.ID] = settled

	items, err := svc.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, open.ID, items[0].ID)
}
