package payments

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryPaymentRepo struct {
	payments map[int64]Payment
	nextID   int64
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{payments: make(map[int64]Payment)}
}

func (r *memoryPaymentRepo) CreatePayment(ctx context.Context, p Payment) (Payment, error) {
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	r.payments[p.ID] = p
	return p, nil
}

func (r *memoryPaymentRepo) GetPayment(ctx context.Context, id int64) (Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryPaymentRepo) ListPayments(ctx context.Context, onlyOpen bool, limit int) ([]Payment, error) {
	var items []Payment
	for _, p := range r.payments {
		if onlyOpen && p.Reconciled {
			continue
		}
		items = append(items, p)
	}
	return items, nil
}

func TestRecordPayment(t *testing.T) {
	repo := newMemoryPaymentRepo()
	svc := NewService(repo, nil)

	p, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		Amount:       1940.00,
		PaymentDate:  time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		PayingEntity: "CanAmex",
		Reference:    "DEP-8841",
	})
	require.NoError(t, err)
	require.False(t, p.Reconciled)
	require.NotZero(t, p.ID)
}

func TestRecordPaymentRejectsInvalid(t *testing.T) {
	repo := newMemoryPaymentRepo()
	svc := NewService(repo, nil)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		Amount:      0,
		PaymentDate: time.Now(),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestImportCSV(t *testing.T) {
	repo := newMemoryPaymentRepo()
	svc := NewService(repo, nil)

	csvData := strings.Join([]string{
		"date,amount,paying_entity,reference,notes",
		"2025-01-20,1940.00,CanAmex,DEP-8841,weekly settlement",
		"2025-01-21,485.00,Treadstone Capital,TC-1192,",
		"not-a-date,100.00,Acme,,",
		"2025-01-22,-50,Acme,,",
	}, "\n")

	result, err := svc.ImportCSV(context.Background(), strings.NewReader(csvData), 1)
	require.NoError(t, err)
	require.Equal(t, 2, result.Imported)
	require.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)

	open, err := svc.ListPayments(context.Background(), true, 0)
	require.NoError(t, err)
	require.Len(t, open, 2)
}

func TestImportCSVEmptyFile(t *testing.T) {
	repo := newMemoryPaymentRepo()
	svc := NewService(repo, nil)

	result, err := svc.ImportCSV(context.Background(), strings.NewReader(""), 1)
	require.NoError(t, err)
	require.Zero(t, result.Imported)
	require.Zero(t, result.Failed)
}
