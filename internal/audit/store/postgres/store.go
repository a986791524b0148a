// Package postgres is the durable audit backend. Events land in a single
// append-only table; the in-memory chain stays authoritative for integrity.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vigil/internal/audit"
	"vigil/internal/audit/store"
	"vigil/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	ts          TIMESTAMPTZ NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	session_id  TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	resource    TEXT NOT NULL,
	resource_id TEXT NOT NULL DEFAULT '',
	details     JSONB,
	ip_address  TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	severity    TEXT NOT NULL,
	hash        TEXT NOT NULL,
	prev_hash   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_ts_idx ON audit_events (ts);
CREATE INDEX IF NOT EXISTS audit_events_user_idx ON audit_events (user_id);
`

// PostgresStore persists audit events via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the audit table if missing. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Store(ctx context.Context, event audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_events
			(id, ts, user_id, session_id, action, resource, resource_id,
			 details, ip_address, user_agent, outcome, severity, hash, prev_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Timestamp, event.UserID, event.SessionID,
		event.Action, event.Resource, event.ResourceID, details,
		event.IPAddress, event.UserAgent, string(event.Outcome),
		string(event.Severity), event.Hash, event.PrevHash,
	)
	if err != nil {
		return fmt.Errorf("store audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Retrieve(ctx context.Context, eventID string) (*audit.Event, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, ts, user_id, session_id, action, resource, resource_id,
		       details, ip_address, user_agent, outcome, severity, hash, prev_hash
		FROM audit_events WHERE id = $1`, eventID)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("retrieve audit event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) List(ctx context.Context, filter store.Filter) ([]audit.Event, error) {
	query := `
		SELECT id, ts, user_id, session_id, action, resource, resource_id,
		       details, ip_address, user_agent, outcome, severity, hash, prev_hash
		FROM audit_events WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserID != "" {
		query += " AND user_id = " + arg(filter.UserID)
	}
	if filter.Action != "" {
		query += " AND action = " + arg(filter.Action)
	}
	if filter.Resource != "" {
		query += " AND resource = " + arg(filter.Resource)
	}
	if filter.Severity != "" {
		query += " AND severity = " + arg(string(filter.Severity))
	}
	if !filter.Start.IsZero() {
		query += " AND ts >= " + arg(filter.Start)
	}
	if !filter.End.IsZero() {
		query += " AND ts <= " + arg(filter.End)
	}
	query += " ORDER BY ts"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*audit.Event, error) {
	var e audit.Event
	var details []byte
	var outcome, severity string
	if err := row.Scan(
		&e.ID, &e.Timestamp, &e.UserID, &e.SessionID, &e.Action,
		&e.Resource, &e.ResourceID, &details, &e.IPAddress, &e.UserAgent,
		&outcome, &severity, &e.Hash, &e.PrevHash,
	); err != nil {
		return nil, err
	}
	e.Outcome = audit.Outcome(outcome)
	e.Severity = audit.Severity(severity)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	return &e, nil
}
