// Package audit persists pipeline security events to SQLite. The store is
// append-only; retention is handled by Prune.
package audit

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/fariz/warden/pkg/errkit"
	"github.com/fariz/warden/pkg/toolexec"
)

// Event is one persisted pipeline decision
type Event struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	Actor         string    `json:"actor"`
	Action        string    `json:"action"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason"`
	Path          string    `json:"path"`
}

// Store is a SQLite-backed audit event store
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore opens the audit database, creating the schema if needed
func NewStore(dbPath string, logger zerolog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, errkit.New(errkit.KindConfiguration, "audit database path is required")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errkit.Wrap(errkit.KindConfiguration, err, "failed to open audit database")
	}

	// WAL mode keeps writers from blocking the query path
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errkit.Wrap(errkit.KindConfiguration, err, "failed to enable WAL mode")
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info().Str("path", dbPath).Msg("Audit store initialized")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			correlation_id TEXT NOT NULL DEFAULT '',
			actor TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_events_action ON audit_events(action);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errkit.Wrap(errkit.KindConfiguration, err, "failed to initialize audit schema")
	}
	return nil
}

// Record persists one pipeline event. Failures are logged, not returned:
// an audit outage must not fail the tool call it describes.
func (s *Store) Record(ctx context.Context, event toolexec.AuditEvent) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (timestamp, correlation_id, actor, action, status, reason, path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), event.CorrelationID, event.Actor, event.Action, event.Status, event.Reason, event.Path,
	)
	if err != nil {
		s.logger.Error().Err(err).
			Str("action", event.Action).
			Str("status", event.Status).
			Msg("Failed to record audit event")
	}
}

// Query returns the most recent events, newest first
func (s *Store) Query(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, correlation_id, actor, action, status, reason, path
		 FROM audit_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errkit.Wrap(errkit.KindInternal, err, "failed to query audit events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.CorrelationID, &e.Actor, &e.Action, &e.Status, &e.Reason, &e.Path); err != nil {
			return nil, errkit.Wrap(errkit.KindInternal, err, "failed to scan audit event")
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the cutoff and returns how many were removed
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE timestamp < ?`, olderThan.UTC())
	if err != nil {
		return 0, errkit.Wrap(errkit.KindInternal, err, "failed to prune audit events")
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, errkit.Wrap(errkit.KindInternal, err, "failed to count pruned events")
	}

	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("Pruned audit events")
	}
	return removed, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
