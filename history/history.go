// Package history records connection sessions in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"
)

// ErrSessionNotFound is returned when no session with the given ID exists.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	entry_name  TEXT NOT NULL,
	server      TEXT NOT NULL DEFAULT '',
	username    TEXT NOT NULL DEFAULT '',
	client_ip   TEXT NOT NULL DEFAULT '',
	server_ip   TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER,
	result      TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions (started_at);
`

// Session is one row of the history.
type Session struct {
	ID        string
	EntryName string
	Server    string
	Username  string
	ClientIP  string
	ServerIP  string
	StartedAt time.Time
	// EndedAt is zero while the session is open.
	EndedAt time.Time
	Result  string
	Error   string
}

// Duration returns how long the session lasted, or zero while it is open.
func (s Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Store is a SQLite backed session history.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating it and its schema if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin records the start of a session.
func (s *Store) Begin(ctx context.Context, sess Session) error {
	query := `
		INSERT INTO sessions (id, entry_name, server, username, client_ip, server_ip, started_at, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.EntryName,
		sess.Server,
		sess.Username,
		sess.ClientIP,
		sess.ServerIP,
		sess.StartedAt.UnixMilli(),
		sess.Result,
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// Finish closes the session id with its result.
// Returns ErrSessionNotFound if the session does not exist.
func (s *Store) Finish(ctx context.Context, id, result, errMsg string, endedAt time.Time) error {
	query := `
		UPDATE sessions
		SET ended_at = ?, result = ?, error = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, endedAt.UnixMilli(), result, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Get returns the session id.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	query := `
		SELECT id, entry_name, server, username, client_ip, server_ip, started_at, ended_at, result, error
		FROM sessions
		WHERE id = ?
	`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// Recent returns at most limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, entry_name, server, username, client_ip, server_ip, started_at, ended_at, result, error
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// CloseOpen marks every session left open by a previous run as ended
// with result. It returns the number of sessions closed.
func (s *Store) CloseOpen(ctx context.Context, result string, endedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, result = ? WHERE ended_at IS NULL`,
		endedAt.UnixMilli(), result)
	if err != nil {
		return 0, fmt.Errorf("failed to close open sessions: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess    Session
		started int64
		ended   sql.NullInt64
	)
	err := row.Scan(
		&sess.ID,
		&sess.EntryName,
		&sess.Server,
		&sess.Username,
		&sess.ClientIP,
		&sess.ServerIP,
		&started,
		&ended,
		&sess.Result,
		&sess.Error,
	)
	if err != nil {
		return Session{}, err
	}
	sess.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		sess.EndedAt = time.UnixMilli(ended.Int64)
	}
	return sess, nil
}
