package postgres

import (
	"context"
	"fmt"

	"github.com/lupppig/notifyhttp/internal/domain"
)

const insertRequestLog = `
	INSERT INTO http_requests (id, trigger_name, method, url, body, content_type, status_code, response_body, attempt, logged_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// RequestLogStore writes http_requests rows. Each call acquires its own
// pooled connection and releases it before returning.
type RequestLogStore struct {
	db *DB
}

func NewRequestLogStore(db *DB) *RequestLogStore {
	return &RequestLogStore{db: db}
}

func (s *RequestLogStore) LogRequest(ctx context.Context, entry *domain.RequestLog) error {
	conn, err := s.db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, insertRequestLog,
		entry.ID,
		entry.Trigger,
		entry.Method,
		entry.URL,
		entry.Body,
		entry.ContentType,
		entry.StatusCode,
		entry.ResponseBody,
		entry.Attempt,
		entry.LoggedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}

	return nil
}

func (s *RequestLogStore) List(ctx context.Context, limit int) ([]*domain.RequestLog, error) {
	query := `
		SELECT id, trigger_name, method, url, COALESCE(body, ''), COALESCE(content_type, ''),
		       COALESCE(status_code, 0), COALESCE(response_body, ''), attempt, logged_at
		FROM http_requests
		ORDER BY logged_at DESC
		LIMIT $1
	`
	rows, err := s.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query request logs: %w", err)
	}
	defer rows.Close()

	var entries []*domain.RequestLog
	for rows.Next() {
		var entry domain.RequestLog
		err := rows.Scan(
			&entry.ID,
			&entry.Trigger,
			&entry.Method,
			&entry.URL,
			&entry.Body,
			&entry.ContentType,
			&entry.StatusCode,
			&entry.ResponseBody,
			&entry.Attempt,
			&entry.LoggedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request logs: %w", err)
	}
	return entries, nil
}

func (s *RequestLogStore) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx)
}

func (s *RequestLogStore) Close() error {
	s.db.Close()
	return nil
}
