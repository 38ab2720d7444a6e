package invoices

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const invoiceColumns = `id, number, customer, total, status, invoice_date, COALESCE(paid_date, 'epoch'::date), created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.Customer, &inv.Total, &inv.Status,
		&inv.InvoiceDate, &inv.PaidDate, &inv.CreatedAt)
	return inv, err
}

// CreateInvoice inserts a new open invoice.
func (r *Repository) CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO invoices (number, customer, total, status, invoice_date)
VALUES ($1, $2, $3, $4, $5) RETURNING `+invoiceColumns,
		inv.Number, inv.Customer, inv.Total, StatusOpen, inv.InvoiceDate)
	created, err := scanInvoice(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Invoice{}, ErrDuplicateNumber
		}
		return Invoice{}, err
	}
	return created, nil
}

// GetInvoice fetches an invoice by primary key.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

// ListOpen returns open invoices, oldest first.
func (r *Repository) ListOpen(ctx context.Context) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE status = $1 ORDER BY invoice_date`, StatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
