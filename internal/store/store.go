package store

import (
	"context"
	"errors"

	"github.com/lupppig/notifyhttp/internal/domain"
)

var ErrUnsupportedDriver = errors.New("unsupported store driver")

// RequestLogStore records request/response metadata for every completed attempt.
type RequestLogStore interface {
	LogRequest(ctx context.Context, entry *domain.RequestLog) error
	Close() error
}

// RequestLogReader is implemented by sinks that can be queried back.
type RequestLogReader interface {
	List(ctx context.Context, limit int) ([]*domain.RequestLog, error)
}

// Migrator is implemented by sinks that own a schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

type Noop struct{}

func (Noop) LogRequest(context.Context, *domain.RequestLog) error { return nil }
func (Noop) Close() error                                         { return nil }
