package recon

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfreight/linehaul/internal/invoices"
	"github.com/openfreight/linehaul/internal/loads"
	"github.com/openfreight/linehaul/internal/payments"
	"github.com/openfreight/linehaul/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const loadColumns = `id, load_id, carrier, customer, pickup_date, delivery_date, gross_amount, net_amount, fee_percent, payment_method, status, notes, created_at, updated_at`

// notLinked excludes loads carrying a live reconciliation link.
const notLinked = ` AND id NOT IN (SELECT load_id FROM reconciliation_links WHERE voided_at IS NULL)`

func scanLoads(rows pgx.Rows) ([]loads.Load, error) {
	defer rows.Close()
	var items []loads.Load
	for rows.Next() {
		var l loads.Load
		if err := rows.Scan(&l.ID, &l.LoadID, &l.Carrier, &l.Customer, &l.PickupDate, &l.DeliveryDate,
			&l.GrossAmount, &l.NetAmount, &l.FeePercent, &l.PaymentMethod, &l.Status, &l.Notes,
			&l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FindCandidatesWindow returns unlinked completed loads for a carrier with a
// delivery date inside [from, to], oldest first.
func (r *Repository) FindCandidatesWindow(ctx context.Context, carrier string, from, to time.Time) ([]loads.Load, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+loadColumns+` FROM loads
WHERE carrier = $1 AND status = $2 AND delivery_date BETWEEN $3 AND $4`+notLinked+`
ORDER BY delivery_date`, carrier, loads.StatusCompleted, from, to)
	if err != nil {
		return nil, err
	}
	return scanLoads(rows)
}

// FindCandidatesDay returns unlinked completed loads delivered exactly on day.
func (r *Repository) FindCandidatesDay(ctx context.Context, carrier string, day time.Time) ([]loads.Load, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+loadColumns+` FROM loads
WHERE carrier = $1 AND status = $2 AND delivery_date = $3`+notLinked+`
ORDER BY delivery_date`, carrier, loads.StatusCompleted, day)
	if err != nil {
		return nil, err
	}
	return scanLoads(rows)
}

// FindCandidatesGeneric matches the entity against carrier or customer,
// newest first, bounded.
func (r *Repository) FindCandidatesGeneric(ctx context.Context, entity string, until time.Time, limit int) ([]loads.Load, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+loadColumns+` FROM loads
WHERE (carrier = $1 OR customer = $1) AND status = $2 AND delivery_date <= $3`+notLinked+`
ORDER BY delivery_date DESC LIMIT $4`, entity, loads.StatusCompleted, until, limit)
	if err != nil {
		return nil, err
	}
	return scanLoads(rows)
}

// ListOpenPayments returns payments with reconciled=false, oldest first.
func (r *Repository) ListOpenPayments(ctx context.Context) ([]payments.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, amount, payment_date, paying_entity, reference, notes, reconciled, COALESCE(reconciled_at, 'epoch'::timestamptz), created_by, created_at
FROM payments WHERE reconciled = FALSE ORDER BY payment_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []payments.Payment
	for rows.Next() {
		var p payments.Payment
		if err := rows.Scan(&p.ID, &p.Amount, &p.PaymentDate, &p.PayingEntity, &p.Reference, &p.Notes,
			&p.Reconciled, &p.ReconciledAt, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListLinks returns the reconciliation links of one payment.
func (r *Repository) ListLinks(ctx context.Context, paymentID int64) ([]ReconciliationLink, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, payment_id, load_id, matched_amount, reconciled_by, created_at, voided_at
FROM reconciliation_links WHERE payment_id = $1 ORDER BY id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []ReconciliationLink
	for rows.Next() {
		var link ReconciliationLink
		if err := rows.Scan(&link.ID, &link.PaymentID, &link.LoadID, &link.MatchedAmount,
			&link.ReconciledBy, &link.CreatedAt, &link.VoidedAt); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

// UnreconciledByCarrier aggregates the outstanding pool per carrier.
func (r *Repository) UnreconciledByCarrier(ctx context.Context) ([]CarrierSummary, error) {
	rows, err := r.pool.Query(ctx, `SELECT carrier, COUNT(*), SUM(net_amount), MIN(delivery_date)
FROM loads WHERE status = $1`+notLinked+`
GROUP BY carrier ORDER BY SUM(net_amount) DESC`, loads.StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CarrierSummary
	for rows.Next() {
		var s CarrierSummary
		if err := rows.Scan(&s.Carrier, &s.LoadCount, &s.TotalAmount, &s.OldestDelivery); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// LoadsForUpdate fetches the selected loads with row locks so a concurrent
// reconcile serialises behind this transaction.
func (tx *txRepo) LoadsForUpdate(ctx context.Context, ids []int64) ([]loads.Load, error) {
	rows, err := tx.tx.Query(ctx, `SELECT `+loadColumns+` FROM loads WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	return scanLoads(rows)
}

// LinkedLoadIDs returns which of the given loads already carry a live link.
func (tx *txRepo) LinkedLoadIDs(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := tx.tx.Query(ctx, `SELECT load_id FROM reconciliation_links WHERE load_id = ANY($1) AND voided_at IS NULL`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var linked []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		linked = append(linked, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return linked, nil
}

// InsertReconciledPayment writes the payment row already reconciled; it only
// becomes visible when the surrounding transaction commits.
func (tx *txRepo) InsertReconciledPayment(ctx context.Context, draft PaymentDraft, at time.Time) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO payments (amount, payment_date, paying_entity, reference, notes, reconciled, reconciled_at, created_by)
VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7) RETURNING id`,
		draft.Amount, draft.PaymentDate, draft.PayingEntity, draft.Reference, draft.Notes, at, draft.ActorID).Scan(&id)
	return id, err
}

// MarkPaymentReconciled flips an existing payment row.
func (tx *txRepo) MarkPaymentReconciled(ctx context.Context, paymentID int64, at time.Time) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE payments SET reconciled = TRUE, reconciled_at = $1 WHERE id = $2 AND reconciled = FALSE`, at, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return payments.ErrNotFound
	}
	return nil
}

// InsertLink inserts one payment-load link. The partial unique index on
// load_id turns a lost race into ErrAlreadyLinked.
func (tx *txRepo) InsertLink(ctx context.Context, link ReconciliationLink) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO reconciliation_links (payment_id, load_id, matched_amount, reconciled_by)
VALUES ($1, $2, $3, $4)`, link.PaymentID, link.LoadID, link.MatchedAmount, link.ReconciledBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyLinked
		}
		return err
	}
	return nil
}

// FindInvoiceMatch returns the most recent open invoice with exactly the
// given total dated on or before the payment date.
func (tx *txRepo) FindInvoiceMatch(ctx context.Context, amount float64, onOrBefore time.Time) (invoices.Invoice, bool, error) {
	row := tx.tx.QueryRow(ctx, `SELECT id, number, customer, total, status, invoice_date, COALESCE(paid_date, 'epoch'::date), created_at
FROM invoices WHERE status = $1 AND total = $2 AND invoice_date <= $3
ORDER BY invoice_date DESC LIMIT 1 FOR UPDATE`, invoices.StatusOpen, amount, onOrBefore)
	var inv invoices.Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.Customer, &inv.Total, &inv.Status, &inv.InvoiceDate, &inv.PaidDate, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoices.Invoice{}, false, nil
		}
		return invoices.Invoice{}, false, err
	}
	return inv, true, nil
}

// MarkInvoicePaid settles an open invoice.
func (tx *txRepo) MarkInvoicePaid(ctx context.Context, invoiceID int64, paidDate time.Time) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE invoices SET status = $1, paid_date = $2 WHERE id = $3 AND status = $4`,
		invoices.StatusPaid, paidDate, invoiceID, invoices.StatusOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return invoices.ErrNotFound
	}
	return nil
}
