package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgres_EmptyURL(t *testing.T) {
	_, err := NewPostgres(context.Background(), Options{})
	assert.Error(t, err)
}

func TestNewPostgres_PingsAndAppliesPool(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	orig := sqlOpen
	defer func() { sqlOpen = orig }()
	var gotDriver, gotDSN string
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return db, nil
	}

	out, err := NewPostgres(context.Background(), Options{
		URL:             "postgres://u@localhost/orders",
		MaxOpenConns:    4,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "pgx", gotDriver)
	assert.Equal(t, "postgres://u@localhost/orders", gotDSN)
	assert.Equal(t, 4, out.Stats().MaxOpenConnections)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgres_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("refused"))
	mock.ExpectClose()

	orig := sqlOpen
	defer func() { sqlOpen = orig }()
	sqlOpen = func(string, string) (*sql.DB, error) { return db, nil }

	_, err = NewPostgres(context.Background(), Options{URL: "postgres://x"})
	assert.ErrorContains(t, err, "db ping")
	assert.NoError(t, mock.ExpectationsWereMet())
}
