// Package broker abstracts the message bus that request-log entries can be
// streamed to.
package broker

import "context"

// Publisher sends raw payloads to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}
