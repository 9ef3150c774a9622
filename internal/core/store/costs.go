package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adpilot/adpilot/internal/core"
)

// SaveCost appends a priced entry to the cost ledger.
func (s *Store) SaveCost(ctx context.Context, entry core.CostEntry) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("cost entry id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO cost_ledger (id, platform, model, workflow, client_id, input_tokens, output_tokens, cost_cents, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Platform, nullString(entry.Model), entry.Workflow, nullString(entry.ClientID),
		entry.InputTokens, entry.OutputTokens, entry.CostCents, entry.RecordedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store cost entry: %w", err)
	}
	return nil
}

// ListCosts returns ledger entries newest first.
func (s *Store) ListCosts(ctx context.Context, query core.CostQuery) ([]core.CostEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args := costFilter(query)
	stmt := `SELECT id, platform, model, workflow, client_id, input_tokens, output_tokens, cost_cents, recorded_at
		FROM cost_ledger` + where + ` ORDER BY recorded_at DESC, id`
	if query.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list costs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var entries []core.CostEntry
	for rows.Next() {
		var (
			entry      core.CostEntry
			model      sql.NullString
			clientID   sql.NullString
			recordedAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.Platform, &model, &entry.Workflow, &clientID,
			&entry.InputTokens, &entry.OutputTokens, &entry.CostCents, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan cost entry: %w", err)
		}
		entry.Model = model.String
		entry.ClientID = clientID.String
		entry.RecordedAt = time.Unix(recordedAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list costs: %w", err)
	}
	return entries, nil
}

// CostTotals sums the ledger per platform.
func (s *Store) CostTotals(ctx context.Context, query core.CostQuery) ([]core.CostTotal, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args := costFilter(query)
	rows, err := s.DB.QueryContext(ctx, `SELECT platform, COUNT(*), COALESCE(SUM(cost_cents), 0)
		FROM cost_ledger`+where+` GROUP BY platform ORDER BY platform`, args...)
	if err != nil {
		return nil, fmt.Errorf("sum costs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var totals []core.CostTotal
	for rows.Next() {
		var total core.CostTotal
		if err := rows.Scan(&total.Platform, &total.Calls, &total.CostCents); err != nil {
			return nil, fmt.Errorf("scan cost total: %w", err)
		}
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sum costs: %w", err)
	}
	return totals, nil
}

func costFilter(query core.CostQuery) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if id := core.NormalizeKey(query.ClientID); id != "" {
		clauses = append(clauses, "client_id = ?")
		args = append(args, id)
	}
	if platform := core.NormalizeKey(query.Platform); platform != "" {
		clauses = append(clauses, "platform = ?")
		args = append(args, platform)
	}
	if !query.Since.IsZero() {
		clauses = append(clauses, "recorded_at >= ?")
		args = append(args, query.Since.UTC().Unix())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
