package store

import (
	"context"
	"fmt"

	natsbroker "github.com/lupppig/notifyhttp/internal/broker/nats"
	"github.com/lupppig/notifyhttp/internal/config"
	"github.com/lupppig/notifyhttp/internal/store/postgres"
	"github.com/lupppig/notifyhttp/internal/store/sqlite"
	"github.com/lupppig/notifyhttp/internal/store/stream"
)

// Open builds the request-log sink selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (RequestLogStore, error) {
	switch cfg.Driver {
	case "", config.DriverNone:
		return Noop{}, nil
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return postgres.NewRequestLogStore(db), nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverNATS:
		subject := cfg.Subject
		if subject == "" {
			subject = natsbroker.DefaultSubject
		}
		pub, err := natsbroker.New(ctx, cfg.DSN, cfg.Stream, subject)
		if err != nil {
			return nil, err
		}
		return stream.New(pub, subject), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
}
