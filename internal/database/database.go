// Package database provides the SQLite-backed focus-session store. Reads
// are memoized through the query cache; writes invalidate it.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"focuscache/internal/cache"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Session is one completed or in-progress focus session.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	FocusMinutes int        `json:"focus_minutes"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Store wraps the SQLite database. queries may be nil, in which case every
// read goes straight to the database.
type Store struct {
	db      *sql.DB
	queries *cache.QueryCache
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	focus_minutes INTEGER NOT NULL,
	started_at    TIMESTAMP NOT NULL,
	completed_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

// Open opens (creating if needed) the session database at path.
func Open(path string, queries *cache.QueryCache) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, queries: queries}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const sessionByID = `SELECT id, user_id, focus_minutes, started_at, completed_at FROM sessions WHERE id = ?`

// GetSession returns one session by id, serving repeated lookups from the
// query cache.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	params := []interface{}{id}
	if s.queries != nil {
		var cached Session
		if s.queries.Get(ctx, sessionByID, params, &cached) {
			return &cached, nil
		}
	}

	var sess Session
	err := s.db.QueryRowContext(ctx, sessionByID, id).Scan(
		&sess.ID, &sess.UserID, &sess.FocusMinutes, &sess.StartedAt, &sess.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if s.queries != nil {
		_ = s.queries.Set(ctx, sessionByID, params, &sess, 0)
	}
	return &sess, nil
}

const sessionsByUser = `SELECT id, user_id, focus_minutes, started_at, completed_at FROM sessions WHERE user_id = ? ORDER BY started_at DESC LIMIT 100`

// SessionsForUser returns a user's most recent sessions, cached per user.
func (s *Store) SessionsForUser(ctx context.Context, userID string) ([]Session, error) {
	params := []interface{}{userID}
	if s.queries != nil {
		var cached []Session
		if s.queries.Get(ctx, sessionsByUser, params, &cached) {
			return cached, nil
		}
	}

	rows, err := s.db.QueryContext(ctx, sessionsByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.FocusMinutes, &sess.StartedAt, &sess.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	if s.queries != nil {
		_ = s.queries.Set(ctx, sessionsByUser, params, sessions, 0)
	}
	return sessions, nil
}

// CreateSession inserts a session and invalidates memoized query results so
// stale lists are not served past the write.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" || sess.UserID == "" {
		return fmt.Errorf("session id and user id are required")
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, focus_minutes, started_at, completed_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.FocusMinutes, sess.StartedAt, sess.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if s.queries != nil {
		s.queries.Invalidate(ctx)
	}
	return nil
}
