// Package migration creates the ledger schema on first start.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_print_orders",
		SQL: `CREATE TABLE IF NOT EXISTS print_orders (
  id         BIGSERIAL     PRIMARY KEY,
  date       TIMESTAMPTZ   NOT NULL,
  amount     NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (amount >= 0),
  color      TEXT          NOT NULL CHECK (color IN ('bw', 'color')),
  pages      TEXT          NOT NULL,
  copies     INTEGER       NOT NULL CHECK (copies > 0),
  paper_size TEXT          NOT NULL CHECK (paper_size IN ('letter', 'legal')),
  file_path  VARCHAR(200)  NOT NULL,
  status     TEXT          NOT NULL DEFAULT 'pending'
             CHECK (status IN ('pending', 'printing', 'completed', 'cancelled'))
);`,
	},
	{
		Name: "create_index_print_orders_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_print_orders_status ON print_orders (status);`,
	},
	{
		Name: "create_index_print_orders_date",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_print_orders_date ON print_orders (date);`,
	},
}

// EnsureMigrated runs the schema steps unless print_orders already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB) error {
	start := time.Now()
	lg := log.With().Str("component", "database").Logger()

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass('public.print_orders') IS NOT NULL").Scan(&exists); err != nil {
		lg.Error().Err(err).Msg("db_migration_failed: sentinel check")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}
	if exists {
		lg.Info().Dur("duration", time.Since(start)).Msg("schema already exists, skipping migration")
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			lg.Error().Err(err).Str("migration_step", step.Name).Msg("db_migration_failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		lg.Info().Str("migration_step", step.Name).Dur("step_duration", time.Since(stepStart)).Msg("db_migration_step")
	}
	lg.Info().Int("steps", len(steps)).Dur("duration", time.Since(start)).Msg("db_migration_success")
	return nil
}
