package recon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openfreight/linehaul/internal/invoices"
	"github.com/openfreight/linehaul/internal/loads"
	"github.com/openfreight/linehaul/internal/payments"
)

type memoryReconRepo struct {
	loads     map[int64]loads.Load
	payments  map[int64]payments.Payment
	invoices  map[int64]invoices.Invoice
	links     []ReconciliationLink
	nextPayID int64
	nextLink  int64

	// failLinkOn makes the Nth InsertLink call fail, 0 disables.
	failLinkOn int
	linkCalls  int
}

func newMemoryReconRepo() *memoryReconRepo {
	return &memoryReconRepo{
		loads:    make(map[int64]loads.Load),
		payments: make(map[int64]payments.Payment),
		invoices: make(map[int64]invoices.Invoice),
	}
}

func (r *memoryReconRepo) addLoad(id int64, carrier string, delivered time.Time, net float64) {
	r.loads[id] = loads.Load{
		ID: id, LoadID: carrier + "-" + delivered.Format("0102"), Carrier: carrier,
		Customer: "Acme Distribution", DeliveryDate: delivered,
		NetAmount: net, GrossAmount: net, Status: loads.StatusCompleted,
	}
}

func (r *memoryReconRepo) liveLink(loadID int64) bool {
	for _, l := range r.links {
		if l.LoadID == loadID && l.VoidedAt == nil {
			return true
		}
	}
	return false
}

func (r *memoryReconRepo) FindCandidatesWindow(_ context.Context, carrier string, from, to time.Time) ([]loads.Load, error) {
	var items []loads.Load
	for _, l := range r.loads {
		if l.Carrier != carrier || l.Status != loads.StatusCompleted || r.liveLink(l.ID) {
			continue
		}
		if l.DeliveryDate.Before(from) || l.DeliveryDate.After(to) {
			continue
		}
		items = append(items, l)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DeliveryDate.Before(items[j].DeliveryDate) })
	return items, nil
}

func (r *memoryReconRepo) FindCandidatesDay(ctx context.Context, carrier string, day time.Time) ([]loads.Load, error) {
	return r.FindCandidatesWindow(ctx, carrier, day, day)
}

func (r *memoryReconRepo) FindCandidatesGeneric(_ context.Context, entity string, until time.Time, limit int) ([]loads.Load, error) {
	var items []loads.Load
	for _, l := range r.loads {
		if (l.Carrier != entity && l.Customer != entity) || l.Status != loads.StatusCompleted || r.liveLink(l.ID) {
			continue
		}
		if l.DeliveryDate.After(until) {
			continue
		}
		items = append(items, l)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DeliveryDate.After(items[j].DeliveryDate) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *memoryReconRepo) ListOpenPayments(context.Context) ([]payments.Payment, error) {
	var items []payments.Payment
	for _, p := range r.payments {
		if !p.Reconciled {
			items = append(items, p)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *memoryReconRepo) ListLinks(_ context.Context, paymentID int64) ([]ReconciliationLink, error) {
	var items []ReconciliationLink
	for _, l := range r.links {
		if l.PaymentID == paymentID {
			items = append(items, l)
		}
	}
	return items, nil
}

func (r *memoryReconRepo) UnreconciledByCarrier(context.Context) ([]CarrierSummary, error) {
	byCarrier := make(map[string]*CarrierSummary)
	for _, l := range r.loads {
		if l.Status != loads.StatusCompleted || r.liveLink(l.ID) {
			continue
		}
		s, ok := byCarrier[l.Carrier]
		if !ok {
			s = &CarrierSummary{Carrier: l.Carrier, OldestDelivery: l.DeliveryDate}
			byCarrier[l.Carrier] = s
		}
		s.LoadCount++
		s.TotalAmount += l.NetAmount
		if l.DeliveryDate.Before(s.OldestDelivery) {
			s.OldestDelivery = l.DeliveryDate
		}
	}
	var items []CarrierSummary
	for _, s := range byCarrier {
		items = append(items, *s)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TotalAmount > items[j].TotalAmount })
	return items, nil
}

// WithTx snapshots the store and restores it when fn fails, mimicking a
// database rollback.
func (r *memoryReconRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapPayments := make(map[int64]payments.Payment, len(r.payments))
	for k, v := range r.payments {
		snapPayments[k] = v
	}
	snapInvoices := make(map[int64]invoices.Invoice, len(r.invoices))
	for k, v := range r.invoices {
		snapInvoices[k] = v
	}
	snapLinks := append([]ReconciliationLink(nil), r.links...)
	snapPayID, snapLinkID := r.nextPayID, r.nextLink

	if err := fn(ctx, r); err != nil {
		r.payments = snapPayments
		r.invoices = snapInvoices
		r.links = snapLinks
		r.nextPayID, r.nextLink = snapPayID, snapLinkID
		return err
	}
	return nil
}

func (r *memoryReconRepo) LoadsForUpdate(_ context.Context, ids []int64) ([]loads.Load, error) {
	var items []loads.Load
	for _, id := range ids {
		if l, ok := r.loads[id]; ok {
			items = append(items, l)
		}
	}
	return items, nil
}

func (r *memoryReconRepo) LinkedLoadIDs(_ context.Context, ids []int64) ([]int64, error) {
	var linked []int64
	for _, id := range ids {
		if r.liveLink(id) {
			linked = append(linked, id)
		}
	}
	return linked, nil
}

func (r *memoryReconRepo) InsertReconciledPayment(_ context.Context, draft PaymentDraft, at time.Time) (int64, error) {
	r.nextPayID++
	r.payments[r.nextPayID] = payments.Payment{
		ID: r.nextPayID, Amount: draft.Amount, PaymentDate: draft.PaymentDate,
		PayingEntity: draft.PayingEntity, Reference: draft.Reference, Notes: draft.Notes,
		Reconciled: true, ReconciledAt: at, CreatedBy: draft.ActorID,
	}
	return r.nextPayID, nil
}

func (r *memoryReconRepo) MarkPaymentReconciled(_ context.Context, paymentID int64, at time.Time) error {
	p, ok := r.payments[paymentID]
	if !ok || p.Reconciled {
		return payments.ErrNotFound
	}
	p.Reconciled = true
	p.ReconciledAt = at
	r.payments[paymentID] = p
	return nil
}

func (r *memoryReconRepo) InsertLink(_ context.Context, link ReconciliationLink) error {
	r.linkCalls++
	if r.failLinkOn > 0 && r.linkCalls == r.failLinkOn {
		return errors.New("connection reset")
	}
	if r.liveLink(link.LoadID) {
		return ErrAlreadyLinked
	}
	r.nextLink++
	link.ID = r.nextLink
	r.links = append(r.links, link)
	return nil
}

func (r *memoryReconRepo) FindInvoiceMatch(_ context.Context, amount float64, onOrBefore time.Time) (invoices.Invoice, bool, error) {
	var best invoices.Invoice
	found := false
	for _, inv := range r.invoices {
		if inv.Status != invoices.StatusOpen || inv.Total != amount || inv.InvoiceDate.After(onOrBefore) {
			continue
		}
		if !found || inv.InvoiceDate.After(best.InvoiceDate) {
			best = inv
			found = true
		}
	}
	return best, found, nil
}

func (r *memoryReconRepo) MarkInvoicePaid(_ context.Context, invoiceID int64, paidDate time.Time) error {
	inv, ok := r.invoices[invoiceID]
	if !ok || inv.Status != invoices.StatusOpen {
		return invoices.ErrNotFound
	}
	inv.Status = invoices.StatusPaid
	inv.PaidDate = paidDate
	r.invoices[invoiceID] = inv
	return nil
}

func newTestService(repo *memoryReconRepo) *Service {
	return NewService(ServiceDeps{
		Repo:   repo,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestReconcileTwoLoads(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.addLoad(1, "CanAmex", day(10), 970)
	repo.addLoad(2, "CanAmex", day(11), 970)
	svc := newTestService(repo)

	result, err := svc.Reconcile(context.Background(), PaymentDraft{
		Amount: 1940, PaymentDate: day(14), PayingEntity: "CanAmex",
	}, []int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, 1940.00, result.TotalAmount)

	links, err := repo.ListLinks(context.Background(), result.PaymentID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, 970.00, links[0].MatchedAmount)
	require.True(t, repo.payments[result.PaymentID].Reconciled)
}

func TestReconcileWithinTolerance(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.addLoad(1, "CanAmex", day(10), 970)
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), PaymentDraft{
		Amount: 970.01, PaymentDate: day(14), PayingEntity: "CanAmex",
	}, []int64{1})
	require.NoError(t, err)
}

func TestReconcileAmountMismatch(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.addLoad(1, "CanAmex", day(10), 970)
	repo.addLoad(2, "CanAmex", day(11), 970)
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), PaymentDraft{
		Amount: 1945, PaymentDate: day(14), PayingEntity: "CanAmex",
	}, []int64{1, 2})

	var mismatch *AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 5.00, mismatch.Difference)
	require.Empty(t, repo.links)
	require.Empty(t, repo.payments)
}

func TestReconcileAlreadyLinked(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.addLoad(1, "CanAmex", day(10), 970)
	repo.links = append(repo.links, ReconciliationLink{ID: 1, PaymentID: 99, LoadID: 1})
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), PaymentDraft{
		Amount: 970, PaymentDate: day(14), PayingEntity: "CanAmex",
	}, []int64{1})
	require.ErrorIs(t, err, ErrAlreadyLinked)
}

func TestReconcileEmptySelection(t *testing.T) {
	svc := newTestService(newMemoryReconRepo())
	_, err := svc.Reconcile(context.Background(), PaymentDraft{Amount: 100, PayingEntity: "CanAmex"}, nil)
	require.ErrorIs(t, err, ErrEmptySelection)
}

func TestReconcileUnknownLoad(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.addLoad(1, "CanAmex", day(10), 970)
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), PaymentDraft{
		Amount: 970, PaymentDate: day(14), PayingEntity: "CanAmex",
	}, []int64{1, 42})
	require.ErrorIs(t, err, ErrLoadNotFound)
}

func TestReconcileRollsBackOnLinkFailure(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.addLoad(1, "CanAmex", day(10), 970)
	repo.addLoad(2, "CanAmex", day(11), 970)
	repo.failLinkOn = 2
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), PaymentDraft{
		Amount: 1940, PaymentDate: day(14), PayingEntity: "CanAmex",
	}, []int64{1, 2})
	require.Error(t, err)
	require.Empty(t, repo.links)
	require.Empty(t, repo.payments)
}

func TestFindCandidatesWeeklyWindow(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.addLoad(1, "CanAmex", day(8), 500)
	repo.addLoad(2, "CanAmex", day(12), 600)
	repo.addLoad(3, "CanAmex", day(2), 700)  // before the window
	repo.addLoad(4, "CanAmex", day(16), 800) // after the payment date
	repo.addLoad(5, "Treadstone Capital", day(12), 900)
	svc := newTestService(repo)

	set, err := svc.FindCandidates(context.Background(), "CanAmex", day(14))
	require.NoError(t, err)
	require.NotNil(t, set.Schedule)
	require.Equal(t, CadenceWeekly, set.Schedule.Cadence)
	require.Len(t, set.Loads, 2)
	require.Equal(t, int64(1), set.Loads[0].ID) // oldest first
	require.Equal(t, int64(2), set.Loads[1].ID)
}

func TestFindCandidatesDaily(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.addLoad(1, "Treadstone Capital", day(13), 500)
	repo.addLoad(2, "Treadstone Capital", day(12), 600)
	svc := newTestService(repo)

	set, err := svc.FindCandidates(context.Background(), "Treadstone Capital", day(14))
	require.NoError(t, err)
	require.NotNil(t, set.Schedule)
	require.Equal(t, CadenceDaily, set.Schedule.Cadence)
	require.Len(t, set.Loads, 1)
	require.Equal(t, int64(1), set.Loads[0].ID)
}

func TestFindCandidatesUnknownEntityFallsBack(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.addLoad(1, "CanAmex", day(10), 500) // customer is Acme Distribution
	svc := newTestService(repo)

	set, err := svc.FindCandidates(context.Background(), "Acme Distribution", day(14))
	require.NoError(t, err)
	require.Nil(t, set.Schedule)
	require.Len(t, set.Loads, 1)
}

func TestFindCandidatesSuggestsEntity(t *testing.T) {
	svc := newTestService(newMemoryReconRepo())

	set, err := svc.FindCandidates(context.Background(), "CanAmx", day(14))
	require.NoError(t, err)
	require.Equal(t, "CanAmex", set.Suggestion)
}

func TestFindCandidatesExcludesLinked(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.addLoad(1, "CanAmex", day(10), 500)
	repo.addLoad(2, "CanAmex", day(11), 600)
	repo.links = append(repo.links, ReconciliationLink{ID: 1, PaymentID: 7, LoadID: 1})
	svc := newTestService(repo)

	set, err := svc.FindCandidates(context.Background(), "CanAmex", day(14))
	require.NoError(t, err)
	require.Len(t, set.Loads, 1)
	require.Equal(t, int64(2), set.Loads[0].ID)
}

func TestAutoMatchSettlesExactInvoice(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.invoices[1] = invoices.Invoice{ID: 1, Number: "INV-100", Total: 500, Status: invoices.StatusOpen, InvoiceDate: day(10)}
	repo.payments[1] = payments.Payment{ID: 1, Amount: 500, PaymentDate: day(12), PayingEntity: "Acme Distribution"}
	repo.payments[2] = payments.Payment{ID: 2, Amount: 321.55, PaymentDate: day(12), PayingEntity: "Acme Distribution"}
	svc := newTestService(repo)

	report, err := svc.AutoMatchAll(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, MatchReport{TotalCandidates: 2, Matched: 1, Unmatched: 1}, report)
	require.Equal(t, invoices.StatusPaid, repo.invoices[1].Status)
	require.True(t, repo.payments[1].Reconciled)
	require.False(t, repo.payments[2].Reconciled)
}

func TestAutoMatchIgnoresFutureInvoices(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.invoices[1] = invoices.Invoice{ID: 1, Number: "INV-101", Total: 500, Status: invoices.StatusOpen, InvoiceDate: day(20)}
	repo.payments[1] = payments.Payment{ID: 1, Amount: 500, PaymentDate: day(12)}
	svc := newTestService(repo)

	report, err := svc.AutoMatchAll(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 0, report.Matched)
	require.Equal(t, invoices.StatusOpen, repo.invoices[1].Status)
}

func TestAutoMatchPrefersNewestInvoice(t *testing.T) {
	repo := newMemoryReconRepo()
	repo.invoices[1] = invoices.Invoice{ID: 1, Number: "INV-102", Total: 500, Status: invoices.StatusOpen, InvoiceDate: day(1)}
	repo.invoices[2] = invoices.Invoice{ID: 2, Number: "INV-103", Total: 500, Status: invoices.StatusOpen, InvoiceDate: day(8)}
	repo.payments[1] = payments.Payment{ID: 1, Amount: 500, PaymentDate: day(12)}
	svc := newTestService(repo)

	report, err := svc.AutoMatchAll(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, report.Matched)
	require.Equal(t, invoices.StatusPaid, repo.invoices[2].Status)
	require.Equal(t, invoices.StatusOpen, repo.invoices[1].Status)
}
