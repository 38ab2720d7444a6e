package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const paymentColumns = `id, amount, payment_date, paying_entity, reference, notes, reconciled, COALESCE(reconciled_at, 'epoch'::timestamptz), created_by, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.Amount, &p.PaymentDate, &p.PayingEntity, &p.Reference, &p.Notes,
		&p.Reconciled, &p.ReconciledAt, &p.CreatedBy, &p.CreatedAt)
	return p, err
}

// CreatePayment inserts an unreconciled payment row.
func (r *Repository) CreatePayment(ctx context.Context, p Payment) (Payment, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO payments (amount, payment_date, paying_entity, reference, notes, reconciled, created_by)
VALUES ($1, $2, $3, $4, $5, FALSE, $6) RETURNING `+paymentColumns,
		p.Amount, p.PaymentDate, p.PayingEntity, p.Reference, p.Notes, p.CreatedBy)
	return scanPayment(row)
}

// GetPayment fetches a payment by primary key.
func (r *Repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

// ListPayments returns payments newest-first, optionally only unreconciled ones.
func (r *Repository) ListPayments(ctx context.Context, onlyOpen bool, limit int) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`
	if onlyOpen {
		query += ` WHERE reconciled = FALSE`
	}
	query += ` ORDER BY payment_date DESC, id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
