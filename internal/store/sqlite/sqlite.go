// Package sqlite keeps the request log in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/lupppig/notifyhttp/internal/domain"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// loggedAtLayout is fixed width so that text order matches time order.
const loggedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
	CREATE TABLE IF NOT EXISTS http_requests (
		id            TEXT PRIMARY KEY,
		trigger_name  TEXT NOT NULL DEFAULT '',
		method        TEXT NOT NULL,
		url           TEXT NOT NULL,
		body          TEXT,
		content_type  TEXT,
		status_code   INTEGER,
		response_body TEXT,
		attempt       INTEGER NOT NULL DEFAULT 1,
		logged_at     TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_http_requests_logged_at ON http_requests(logged_at);
`

// Store is a RequestLogStore backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database file and its parent directory when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// LogRequest takes a dedicated connection for the insert and returns it to
// the pool on every path.
func (s *Store) LogRequest(ctx context.Context, entry *domain.RequestLog) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	query := `
		INSERT INTO http_requests (id, trigger_name, method, url, body, content_type, status_code, response_body, attempt, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err = retryOnBusy(ctx, func() error {
		_, execErr := conn.ExecContext(ctx, query,
			entry.ID,
			entry.Trigger,
			entry.Method,
			entry.URL,
			entry.Body,
			entry.ContentType,
			entry.StatusCode,
			entry.ResponseBody,
			entry.Attempt,
			entry.LoggedAt.UTC().Format(loggedAtLayout),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*domain.RequestLog, error) {
	query := `
		SELECT id, trigger_name, method, url, COALESCE(body, ''), COALESCE(content_type, ''),
		       COALESCE(status_code, 0), COALESCE(response_body, ''), attempt, logged_at
		FROM http_requests
		ORDER BY logged_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query request logs: %w", err)
	}
	defer rows.Close()

	var entries []*domain.RequestLog
	for rows.Next() {
		var entry domain.RequestLog
		var loggedAt string
		if err := rows.Scan(
			&entry.ID,
			&entry.Trigger,
			&entry.Method,
			&entry.URL,
			&entry.Body,
			&entry.ContentType,
			&entry.StatusCode,
			&entry.ResponseBody,
			&entry.Attempt,
			&loggedAt,
		); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		if entry.LoggedAt, err = time.Parse(loggedAtLayout, loggedAt); err != nil {
			return nil, fmt.Errorf("parse logged_at %q: %w", loggedAt, err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request logs: %w", err)
	}
	return entries, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy repeats op while SQLite reports the database as locked.
// Any other error ends the loop at once.
func retryOnBusy(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = busyRetryInitialBackoff
	b.MaxInterval = busyRetryMaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, busyRetryAttempts-1), ctx)
	return backoff.Retry(func() error {
		if err := op(); err != nil {
			if !isSQLiteBusy(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}, policy)
}
