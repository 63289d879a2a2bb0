package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/avoiney/oppy/pkg/logger"
	"github.com/avoiney/oppy/pkg/postgres"
)

// PostgresStore keeps audit events in the query_audit table and serves the
// shell's history command from it.
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.WithComponent("audit-store"),
	}
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS query_audit (
		id         UUID PRIMARY KEY,
		profile    TEXT NOT NULL,
		vault      TEXT NOT NULL DEFAULT '',
		query      TEXT NOT NULL,
		matches    INTEGER NOT NULL,
		latency_ms DOUBLE PRECISION NOT NULL,
		error      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS query_audit_profile_created_idx
		ON query_audit (profile, created_at DESC)`,
}

// Migrate creates the table and index when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range migrations {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrating audit schema: %w", err)
			}
		}
		return nil
	})
}

// Record inserts e. Replaying an event with a known id is a no-op.
func (s *PostgresStore) Record(ctx context.Context, e Event) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO query_audit (id, profile, vault, query, matches, latency_ms, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Profile, e.Vault, e.Query, e.Matches, e.LatencyMs, e.Error, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("saving audit event: %w", err)
	}
	return nil
}

// Recent returns the last limit events of profile, newest first.
func (s *PostgresStore) Recent(ctx context.Context, profile string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, profile, vault, query, matches, latency_ms, error, created_at
		 FROM query_audit WHERE profile = $1
		 ORDER BY created_at DESC LIMIT $2`,
		profile, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Profile, &e.Vault, &e.Query, &e.Matches, &e.LatencyMs, &e.Error, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close leaves the connection pool to its owner.
func (s *PostgresStore) Close() error { return nil }
