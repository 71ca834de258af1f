// Package stream forwards request-log entries to a message broker as JSON
// instead of writing them to a table.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lupppig/notifyhttp/internal/broker"
	"github.com/lupppig/notifyhttp/internal/domain"
)

type Store struct {
	publisher broker.Publisher
	subject   string
}

func New(publisher broker.Publisher, subject string) *Store {
	return &Store{publisher: publisher, subject: subject}
}

type record struct {
	*domain.RequestLog
	Status domain.LogStatus `json:"status"`
}

func (s *Store) LogRequest(ctx context.Context, entry *domain.RequestLog) error {
	data, err := json.Marshal(record{RequestLog: entry, Status: entry.Status()})
	if err != nil {
		return fmt.Errorf("marshal request log: %w", err)
	}
	if err := s.publisher.Publish(ctx, s.subject, data); err != nil {
		return fmt.Errorf("publish request log: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.publisher.Close()
}
