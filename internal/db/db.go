// Package db wraps the Postgres connection pool used for the optional
// audit log of recognition events. The whole service works without it;
// handlers that need it respond 503 when it is not configured.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func Open(ctx context.Context, url string) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	slog.Info("connected to Postgres")
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// Migrate creates the audit schema. Idempotent; run when AUTO_MIGRATE
// is enabled.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recognition_events (
  id         UUID PRIMARY KEY,
  kind       TEXT NOT NULL,
  user_id    TEXT,
  matched    BOOLEAN,
  distance   DOUBLE PRECISION,
  model      TEXT,
  request_id TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS recognition_events_kind_idx
  ON recognition_events (kind, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("db: migrate: %w", err)
		}
	}
	slog.Info("audit schema migrated")
	return nil
}

// RecordEvent inserts one audit row. Callers treat failures as
// best-effort and only log them.
func (d *DB) RecordEvent(ctx context.Context, id, kind, userID string, matched bool, distance float64, model, requestID string) error {
	var uid *string
	if userID != "" {
		uid = &userID
	}
	_, err := d.Pool.Exec(ctx, `
INSERT INTO recognition_events (id, kind, user_id, matched, distance, model, request_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, id, kind, uid, matched, distance, model, requestID)
	if err != nil {
		return fmt.Errorf("db: record event: %w", err)
	}
	return nil
}

// AuditEvent is one row of the recognition audit log as served by the
// events endpoint.
type AuditEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	UserID    *string   `json:"user_id,omitempty"`
	Matched   *bool     `json:"matched,omitempty"`
	Distance  *float64  `json:"distance,omitempty"`
	Model     *string   `json:"model,omitempty"`
	RequestID *string   `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecentEvents returns the newest audit rows, capped at limit.
func (d *DB) RecentEvents(ctx context.Context, limit int) ([]AuditEvent, error) {
	rows, err := d.Pool.Query(ctx, `
SELECT id, kind, user_id, matched, distance, model, request_id, created_at
FROM recognition_events
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("db: recent events: %w", err)
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.UserID, &e.Matched, &e.Distance, &e.Model, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db: scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: recent events: %w", err)
	}
	return out, nil
}

// IdentifyCounts returns total and matched identification counts for the
// stats endpoint.
func (d *DB) IdentifyCounts(ctx context.Context) (total, matched int64, err error) {
	err = d.Pool.QueryRow(ctx, `
SELECT
  COUNT(*) FILTER (WHERE kind = 'identify'),
  COUNT(*) FILTER (WHERE kind = 'identify' AND matched)
FROM recognition_events
`).Scan(&total, &matched)
	if err != nil {
		return 0, 0, fmt.Errorf("db: identify counts: %w", err)
	}
	return total, matched, nil
}
