// Package database opens the PostgreSQL pool backing the order ledger.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var sqlOpen = sql.Open

type Options struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgres opens a database/sql pool on the pgx driver and verifies it
// with a ping.
func NewPostgres(ctx context.Context, opts Options) (*sql.DB, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	db, err := sqlOpen("pgx", opts.URL)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}
