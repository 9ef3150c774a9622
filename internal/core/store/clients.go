package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adpilot/adpilot/internal/core"
)

// UpsertClient creates or updates a client record.
func (s *Store) UpsertClient(ctx context.Context, client core.Client) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id := core.NormalizeKey(client.ID)
	if id == "" {
		return errors.New("client id is required")
	}
	name := client.Name
	if name == "" {
		name = id
	}
	kpi := core.ParseKPI(string(client.PrimaryKPI))
	updatedAt := client.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO clients (id, name, primary_kpi, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			primary_kpi = excluded.primary_kpi,
			updated_at = excluded.updated_at
	`, id, name, string(kpi), updatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store client: %w", err)
	}
	return nil
}

// GetClient returns a client by id, or nil when it does not exist.
func (s *Store) GetClient(ctx context.Context, id string) (*core.Client, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id = core.NormalizeKey(id)
	if id == "" {
		return nil, errors.New("client id is required")
	}

	var (
		name      string
		kpi       string
		updatedAt int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT name, primary_kpi, updated_at
		FROM clients
		WHERE id = ?
	`, id)
	if err := row.Scan(&name, &kpi, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch client: %w", err)
	}

	return &core.Client{
		ID:         id,
		Name:       name,
		PrimaryKPI: core.ParseKPI(kpi),
		UpdatedAt:  time.Unix(updatedAt, 0).UTC(),
	}, nil
}

// PrimaryKPI returns the client's KPI. Unknown clients rank by conversions.
func (s *Store) PrimaryKPI(ctx context.Context, clientID string) (core.KPI, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return "", err
	}
	if client == nil {
		return core.KPIConversions, nil
	}
	return client.PrimaryKPI, nil
}

// ListClients returns all clients ordered by id.
func (s *Store) ListClients(ctx context.Context) ([]core.Client, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, primary_kpi, updated_at FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var clients []core.Client
	for rows.Next() {
		var (
			client    core.Client
			kpi       string
			updatedAt int64
		)
		if err := rows.Scan(&client.ID, &client.Name, &kpi, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		client.PrimaryKPI = core.ParseKPI(kpi)
		client.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}
