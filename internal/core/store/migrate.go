package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		primary_kpi TEXT NOT NULL DEFAULT 'conversions',
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS cost_ledger (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		model TEXT,
		workflow TEXT NOT NULL,
		client_id TEXT,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cost_cents REAL NOT NULL,
		recorded_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_cost_ledger_client ON cost_ledger(client_id, recorded_at);`,
	`CREATE INDEX IF NOT EXISTS idx_cost_ledger_platform ON cost_ledger(platform, recorded_at);`,
	`CREATE TABLE IF NOT EXISTS ab_test_results (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		kpi TEXT NOT NULL,
		significant INTEGER NOT NULL,
		winner TEXT,
		loser TEXT,
		confidence_pct REAL NOT NULL,
		improvement_pct REAL NOT NULL,
		verdict_json TEXT NOT NULL,
		evaluated_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_ab_test_results_client ON ab_test_results(client_id, evaluated_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	if err := s.ensureColumn(ctx, "ab_test_results", "summary", "TEXT"); err != nil {
		return err
	}

	return nil
}

func (s *Store) ensureColumn(ctx context.Context, table, column, columnDef string) error {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect %s schema: %w", table, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("inspect %s columns: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}

	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnDef)); err != nil {
		return fmt.Errorf("add %s.%s column: %w", table, column, err)
	}

	return nil
}
