package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

func (db *DB) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS http_requests (
			id            TEXT PRIMARY KEY,
			trigger_name  TEXT NOT NULL DEFAULT '',
			method        TEXT NOT NULL,
			url           TEXT NOT NULL,
			body          TEXT,
			content_type  TEXT,
			status_code   INT,
			response_body TEXT,
			attempt       INT NOT NULL DEFAULT 1,
			logged_at     TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_http_requests_logged_at ON http_requests(logged_at);
		CREATE INDEX IF NOT EXISTS idx_http_requests_status_code ON http_requests(status_code);
	`

	_, err := db.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
