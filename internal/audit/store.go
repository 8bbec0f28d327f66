// Package audit persists a trail of every console command relayed through
// the bridge: who asked, what was sent, and what the console answered.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

// migrations are applied in order; applied versions are tracked in
// schema_versions.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS command_log (
    id          TEXT PRIMARY KEY,
    issued_at   DATETIME NOT NULL,
    actor       TEXT NOT NULL DEFAULT '',
    command     TEXT NOT NULL,
    family      TEXT NOT NULL DEFAULT '',
    outcome     TEXT NOT NULL DEFAULT '',
    response    TEXT NOT NULL DEFAULT '',
    latency_ms  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_command_log_issued_at ON command_log(issued_at DESC);
CREATE INDEX IF NOT EXISTS idx_command_log_actor ON command_log(actor);
`,
	},
}

// Entry is one relayed command.
type Entry struct {
	ID       string
	IssuedAt time.Time
	Actor    string
	Command  string
	Family   string
	Outcome  string
	Response string
	Latency  time.Duration
}

// Recorder records relayed commands. The front-end depends on this
// interface; NopRecorder satisfies it when auditing is disabled.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store is the sqlite-backed audit trail.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}
	// modernc's driver serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent command handlers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	var current int
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_versions`).Scan(&current)
	if err != nil {
		current = 0 // table does not exist yet
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying audit migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_versions (version) VALUES (?)`, m.version); err != nil {
			return fmt.Errorf("recording audit migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Record inserts one entry. A zero ID or IssuedAt is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.IssuedAt.IsZero() {
		e.IssuedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO command_log (id, issued_at, actor, command, family, outcome, response, latency_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.IssuedAt, e.Actor, e.Command, e.Family, e.Outcome, e.Response,
		e.Latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, issued_at, actor, command, family, outcome, response, latency_ms
FROM command_log ORDER BY issued_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var latencyMS int64
		if err := rows.Scan(&e.ID, &e.IssuedAt, &e.Actor, &e.Command,
			&e.Family, &e.Outcome, &e.Response, &latencyMS); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NopRecorder discards entries. Used when auditing is disabled.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Entry) error { return nil }
