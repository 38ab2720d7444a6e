package loads

import (
	"context"
	"errors"
	"fmt"

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

const loadColumns = `id, load_id, carrier, customer, pickup_date, delivery_date, gross_amount, net_amount, fee_percent, payment_method, status, notes, created_at, updated_at`

func scanLoad(row pgx.Row) (Load, error) {
	var l Load
	err := row.Scan(&l.ID, &l.LoadID, &l.Carrier, &l.Customer, &l.PickupDate, &l.DeliveryDate,
		&l.GrossAmount, &l.NetAmount, &l.FeePercent, &l.PaymentMethod, &l.Status, &l.Notes,
		&l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// CreateLoad inserts a new load row.
func (r *Repository) CreateLoad(ctx context.Context, l Load) (Load, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO loads (load_id, carrier, customer, pickup_date, delivery_date, gross_amount, net_amount, fee_percent, payment_method, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING `+loadColumns,
		l.LoadID, l.Carrier, l.Customer, l.PickupDate, l.DeliveryDate, l.GrossAmount, l.NetAmount,
		l.FeePercent, l.PaymentMethod, l.Status, l.Notes)
	created, err := scanLoad(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Load{}, ErrDuplicateLoadID
		}
		return Load{}, err
	}
	return created, nil
}

// GetLoad fetches a load by primary key.
func (r *Repository) GetLoad(ctx context.Context, id int64) (Load, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+loadColumns+` FROM loads WHERE id = $1`, id)
	l, err := scanLoad(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Load{}, ErrNotFound
		}
		return Load{}, err
	}
	return l, nil
}

// ListFilters narrows ListLoads results.
type ListFilters struct {
	Status  Status
	Carrier string
}

// ListLoads returns loads ordered newest-first with a total count.
func (r *Repository) ListLoads(ctx context.Context, limit, offset int, filters ListFilters) ([]Load, int, error) {
	countSQL := `SELECT COUNT(*) FROM loads WHERE 1=1`
	dataSQL := `SELECT ` + loadColumns + ` FROM loads WHERE 1=1`
	var args []any
	if filters.Status != "" {
		args = append(args, filters.Status)
		cond := ` AND status = $1`
		countSQL += cond
		dataSQL += cond
	}
	if filters.Carrier != "" {
		args = append(args, filters.Carrier)
		cond := ` AND carrier = $` + itoa(len(args))
		countSQL += cond
		dataSQL += cond
	}

	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL += ` ORDER BY created_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Load
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MarkCompleted flips a load to completed once delivery is confirmed.
func (r *Repository) MarkCompleted(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE loads SET status = $1, updated_at = NOW() WHERE id = $2`, StatusCompleted, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// itoa converts int to string for dynamic query building.
func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}
