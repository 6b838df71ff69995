package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pisoprint/internal/ledger"
	"github.com/local/pisoprint/internal/paper"
)

var columns = []string{"id", "date", "amount", "color", "pages", "copies", "paper_size", "file_path", "status"}

func TestOrderPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	o := ledger.Order{
		Date:      now,
		Amount:    decimal.RequireFromString("22"),
		Color:     "color",
		Pages:     "1,2",
		Copies:    1,
		PaperSize: paper.Letter,
		FilePath:  "doc",
		Status:    ledger.Pending,
	}
	mock.ExpectQuery("INSERT INTO print_orders").
		WithArgs(now, "22.00", "color", "1,2", 1, "letter", "doc", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))

	id, err := NewOrderPostgres(db).Create(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, int64(41), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrderPostgres(db)

	t.Run("found", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery("SELECT (.+) FROM print_orders WHERE id =").
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(5), now, "12.50", "bw", "1-4", 2, "legal", "doc", "printing"))

		o, err := repo.FindByID(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), o.ID)
		assert.True(t, o.Amount.Equal(decimal.RequireFromString("12.5")))
		assert.Equal(t, paper.Legal, o.PaperSize)
		assert.Equal(t, ledger.Printing, o.Status)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM print_orders WHERE id =").
			WithArgs(int64(6)).
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := repo.FindByID(context.Background(), 6)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderPostgres_Update(t *testing.T) {
	o := ledger.Order{ID: 3, Amount: decimal.NewFromInt(30), Status: ledger.Printing}

	t.Run("applies when status matches", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM print_orders WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
		mock.ExpectExec("UPDATE print_orders SET amount").
			WithArgs("30.00", "printing", int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, NewOrderPostgres(db).Update(context.Background(), ledger.Pending, o))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM print_orders").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("cancelled"))
		mock.ExpectRollback()

		err = NewOrderPostgres(db).Update(context.Background(), ledger.Pending, o)
		assert.ErrorIs(t, err, ledger.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM print_orders").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectRollback()

		err = NewOrderPostgres(db).Update(context.Background(), ledger.Pending, o)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("exec error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM print_orders").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
		mock.ExpectExec("UPDATE print_orders").WillReturnError(errors.New("boom"))
		mock.ExpectRollback()

		err = NewOrderPostgres(db).Update(context.Background(), ledger.Pending, o)
		assert.EqualError(t, err, "boom")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
