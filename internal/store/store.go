// Package store persists log events received by the logpipe server in a
// SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages received-log persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Event is one received log message.
type Event struct {
	ID         int64
	SessionID  string
	Source     string // "tcp" or "websocket"
	ReceivedAt time.Time
	Payload    string
}

// Open initializes or connects to the event database and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS log_events (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        source TEXT NOT NULL,
        received_at TEXT NOT NULL,
        payload TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_log_events_session ON log_events(session_id);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert records one received event.
func (s *Store) Insert(ctx context.Context, evt Event) (int64, error) {
	when := evt.ReceivedAt
	if when.IsZero() {
		when = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO log_events (session_id, source, received_at, payload) VALUES (?, ?, ?, ?)`,
		evt.SessionID,
		evt.Source,
		when.Format(time.RFC3339Nano),
		evt.Payload,
	)
	if err != nil {
		return 0, fmt.Errorf("insert log event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Tail returns the most recent limit events in ascending id order.
func (s *Store) Tail(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, session_id, source, received_at, payload FROM
            (SELECT * FROM log_events ORDER BY id DESC LIMIT ?)
         ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query log events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var evt Event
		var received string
		if err := rows.Scan(&evt.ID, &evt.SessionID, &evt.Source, &received, &evt.Payload); err != nil {
			return nil, fmt.Errorf("scan log event: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, received); parseErr == nil {
			evt.ReceivedAt = ts
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log events: %w", err)
	}
	return events, nil
}

// Count reports the number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM log_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count log events: %w", err)
	}
	return n, nil
}
