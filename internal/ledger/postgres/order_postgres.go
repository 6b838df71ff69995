// Package postgres stores print orders in PostgreSQL through database/sql.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/local/pisoprint/internal/ledger"
	"github.com/local/pisoprint/internal/paper"
)

type OrderPostgres struct {
	db *sql.DB
}

func NewOrderPostgres(db *sql.DB) *OrderPostgres {
	return &OrderPostgres{db: db}
}

var _ ledger.Repository = (*OrderPostgres)(nil)

func (r *OrderPostgres) Create(ctx context.Context, o ledger.Order) (int64, error) {
	const q = `
		INSERT INTO print_orders (date, amount, color, pages, copies, paper_size, file_path, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, q,
		o.Date,
		o.Amount.StringFixed(2),
		o.Color,
		o.Pages,
		o.Copies,
		string(o.PaperSize),
		o.FilePath,
		string(o.Status),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *OrderPostgres) FindByID(ctx context.Context, id int64) (ledger.Order, error) {
	const q = `
		SELECT id, date, amount, color, pages, copies, paper_size, file_path, status
		FROM print_orders
		WHERE id = $1
	`
	var (
		o            ledger.Order
		amount       string
		size, status string
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&o.ID,
		&o.Date,
		&amount,
		&o.Color,
		&o.Pages,
		&o.Copies,
		&size,
		&o.FilePath,
		&status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Order{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Order{}, err
	}
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return ledger.Order{}, err
	}
	o.PaperSize = paper.Size(size)
	o.Status = ledger.Status(status)
	return o, nil
}

// Update writes amount and status only if the row still carries the expected
// status. Zero affected rows means the order is gone or was moved by someone
// else.
func (r *OrderPostgres) Update(ctx context.Context, expected ledger.Status, o ledger.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM print_orders WHERE id = $1 FOR UPDATE`, o.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	if err != nil {
		return err
	}
	if ledger.Status(current) != expected {
		return ledger.ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE print_orders SET amount = $1, status = $2 WHERE id = $3`,
		o.Amount.StringFixed(2), string(o.Status), o.ID,
	); err != nil {
		return err
	}
	return tx.Commit()
}
