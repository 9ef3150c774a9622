package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adpilot/adpilot/internal/core"
)

// SaveVerdict persists an A/B test outcome. An empty ID is assigned.
func (s *Store) SaveVerdict(ctx context.Context, record *core.VerdictRecord) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if record == nil {
		return errors.New("verdict record is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record.ClientID = core.NormalizeKey(record.ClientID)
	if record.ClientID == "" {
		return errors.New("client id is required")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.EvaluatedAt.IsZero() {
		record.EvaluatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(record.Verdict)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}

	significant := 0
	if record.Verdict.Significant {
		significant = 1
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO ab_test_results (id, client_id, platform, campaign_id, kpi, significant, winner, loser,
			confidence_pct, improvement_pct, verdict_json, summary, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.ClientID, record.Platform, record.CampaignID, string(record.Verdict.KPI), significant,
		nullString(record.Verdict.Winner()), nullString(record.Verdict.Loser()),
		record.Verdict.ConfidencePct, record.Verdict.ImprovementPct, string(payload),
		nullString(record.Summary), record.EvaluatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store verdict: %w", err)
	}
	return nil
}

// ListVerdicts returns a client's verdicts newest first. limit <= 0 means all.
func (s *Store) ListVerdicts(ctx context.Context, clientID string, limit int) ([]core.VerdictRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	clientID = core.NormalizeKey(clientID)
	if clientID == "" {
		return nil, errors.New("client id is required")
	}

	stmt := `SELECT id, platform, campaign_id, verdict_json, summary, evaluated_at
		FROM ab_test_results
		WHERE client_id = ?
		ORDER BY evaluated_at DESC, id`
	args := []any{clientID}
	if limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list verdicts: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var records []core.VerdictRecord
	for rows.Next() {
		var (
			record      core.VerdictRecord
			verdictJSON string
			summary     sql.NullString
			evaluatedAt int64
		)
		if err := rows.Scan(&record.ID, &record.Platform, &record.CampaignID, &verdictJSON, &summary, &evaluatedAt); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		if err := json.Unmarshal([]byte(verdictJSON), &record.Verdict); err != nil {
			return nil, fmt.Errorf("decode verdict: %w", err)
		}
		record.ClientID = clientID
		record.Summary = summary.String
		record.EvaluatedAt = time.Unix(evaluatedAt, 0).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list verdicts: %w", err)
	}
	return records, nil
}
