// Package dispatch sends a single notification request, retrying on
// transport failure, and records every completed exchange.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/lupppig/notifyhttp/internal/domain"
	"github.com/lupppig/notifyhttp/internal/httpclient"
	"github.com/lupppig/notifyhttp/internal/logging"
	"github.com/lupppig/notifyhttp/internal/messages"
	"github.com/lupppig/notifyhttp/internal/request"
	"github.com/lupppig/notifyhttp/internal/retry"
	"github.com/lupppig/notifyhttp/internal/store"
)

// NotificationPlugin is the host-facing contract: a boolean and never an error.
type NotificationPlugin interface {
	Dispatch(ctx context.Context, trigger string, executionData map[string]any, config map[string]string) bool
}

// Client executes one attempt.
type Client interface {
	Do(req *http.Request) (*httpclient.Response, error)
	CloseIdleConnections()
}

// StatusError is a completed exchange with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received non-success status %d", e.StatusCode)
}

type Options struct {
	Retry    retry.Config
	Store    store.RequestLogStore
	Logger   *slog.Logger
	Messages messages.Catalog

	// NewClient builds the per-dispatch HTTP client. Defaults to httpclient.New.
	NewClient func(timeout time.Duration) Client
	// NewTimer builds the timer used between attempts. Nil uses a real timer.
	NewTimer func() backoff.Timer
	Now      func() time.Time
	NewID    func() string
}

type Dispatcher struct {
	retry     retry.Config
	store     store.RequestLogStore
	logger    *slog.Logger
	messages  messages.Catalog
	newClient func(time.Duration) Client
	newTimer  func() backoff.Timer
	now       func() time.Time
	newID     func() string
}

var _ NotificationPlugin = (*Dispatcher)(nil)

// New fills unset options with defaults. It is safe to share the result
// between goroutines; no state survives a dispatch.
func New(opts Options) (*Dispatcher, error) {
	if opts.Retry == (retry.Config{}) {
		opts.Retry = retry.DefaultConfig()
	}
	if err := opts.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}

	d := &Dispatcher{
		retry:     opts.Retry,
		store:     opts.Store,
		logger:    opts.Logger,
		messages:  opts.Messages,
		newClient: opts.NewClient,
		newTimer:  opts.NewTimer,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if d.store == nil {
		d.store = store.Noop{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.messages == nil {
		d.messages = messages.New(language.English)
	}
	if d.newClient == nil {
		d.newClient = func(timeout time.Duration) Client { return httpclient.New(timeout) }
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = func() string { return uuid.New().String() }
	}
	return d, nil
}

// Dispatch implements NotificationPlugin.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger string, executionData map[string]any, config map[string]string) bool {
	return d.Run(ctx, trigger, executionData, config).OK
}

// Run performs the whole dispatch and reports how it ended. It never panics.
func (d *Dispatcher) Run(ctx context.Context, trigger string, executionData map[string]any, config map[string]string) (res Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithDispatchID(ctx, d.newID())
	ctx = logging.WithTrigger(ctx, trigger)
	l := logging.FromContext(ctx, d.logger)

	// outcome is filled in as attempts run so a panic still reports them.
	var outcome domain.Outcome
	defer func() {
		if r := recover(); r != nil {
			l.Error(d.messages.Sprintf(messages.NotificationError, fmt.Sprint(r)),
				slog.String("code", logging.CodeInternalError),
				slog.Int("attempts", outcome.Attempts),
			)
			res = Result{Kind: domain.ErrorKindInternal, Detail: fmt.Sprint(r), Outcome: outcome}
		}
	}()

	l.Info(d.messages.Sprintf(messages.NotificationSending, trigger),
		slog.String("code", logging.CodeDispatchStart),
		slog.Int("executionDataKeys", len(executionData)),
	)

	spec, err := request.ParseSpec(config)
	if err != nil {
		l.Error(d.messages.Sprintf(messages.NotificationError, d.describe(err)),
			slog.String("code", logging.CodeConfigError),
			slog.Any("error", err),
		)
		return failure(domain.ErrorKindConfiguration, err, domain.Outcome{})
	}

	client := d.newClient(d.retry.AttemptTimeout)
	defer client.CloseIdleConnections()

	res = d.execute(ctx, l, client, trigger, spec, &outcome)
	if res.OK {
		l.Info(d.messages.Sprintf(messages.NotificationSuccess),
			slog.String("code", logging.CodeSuccess),
			slog.Int("attempts", res.Outcome.Attempts),
			slog.Int("statusCode", res.Outcome.StatusCode),
		)
	} else {
		l.Warn(d.messages.Sprintf(messages.NotificationFailure),
			slog.String("code", logging.CodeFailed),
			slog.String("kind", string(res.Kind)),
			slog.Int("attempts", res.Outcome.Attempts),
			slog.String("detail", res.Detail),
		)
	}
	return res
}

func (d *Dispatcher) execute(ctx context.Context, l *slog.Logger, client Client, trigger string, spec domain.RequestSpec, outcome *domain.Outcome) Result {
	kind := domain.ErrorKindNone

	operation := func() error {
		outcome.Attempts++
		attempt := outcome.Attempts

		req, err := request.Build(ctx, spec)
		if err != nil {
			kind = domain.ErrorKindConfiguration
			return backoff.Permanent(err)
		}
		l.Debug(d.messages.Sprintf(messages.RequestCreated, spec.Method, spec.URL),
			slog.String("code", logging.CodeRequestBuilt),
			slog.Int("attempt", attempt),
			slog.Bool("hasBody", spec.HasEntity()),
		)

		resp, err := client.Do(req)
		if err != nil {
			kind = domain.ErrorKindTransport
			l.Warn(d.messages.Sprintf(messages.AttemptFailed, attempt, err.Error()),
				slog.String("code", logging.CodeAttemptFailed),
				slog.Int("attempt", attempt),
				slog.Int("maxAttempts", d.retry.MaxAttempts),
				slog.Bool("willRetry", d.retry.ShouldRetry(attempt)),
				slog.Any("error", err),
			)
			return err
		}

		outcome.StatusCode = resp.StatusCode
		outcome.ResponseBody = resp.Body
		d.logRequest(ctx, l, trigger, spec, resp, attempt)

		if domain.IsSuccessStatus(resp.StatusCode) {
			kind = domain.ErrorKindNone
			outcome.Success = true
			return nil
		}

		kind = domain.ErrorKindApplication
		l.Warn(d.messages.Sprintf(messages.ResponseNonSuccess, resp.StatusCode),
			slog.String("code", logging.CodeNonSuccess),
			slog.Int("attempt", attempt),
			slog.String("responseBody", resp.Body),
		)
		return backoff.Permanent(&StatusError{StatusCode: resp.StatusCode})
	}

	notify := func(err error, wait time.Duration) {
		l.Debug("waiting before next attempt",
			slog.String("code", logging.CodeAttemptFailed),
			slog.Int("nextAttempt", outcome.Attempts+1),
			slog.Duration("delay", wait),
		)
	}

	var timer backoff.Timer
	if d.newTimer != nil {
		timer = d.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(operation, d.retry.BackOff(ctx), notify, timer)
	if err == nil {
		return Result{OK: true, Kind: domain.ErrorKindNone, Outcome: *outcome}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = domain.ErrorKindTransport
	}
	return failure(kind, err, *outcome)
}

// logRequest hands a completed attempt to the sink. Sink failures, panics
// included, are reported and swallowed.
func (d *Dispatcher) logRequest(ctx context.Context, l *slog.Logger, trigger string, spec domain.RequestSpec, resp *httpclient.Response, attempt int) {
	defer func() {
		if r := recover(); r != nil {
			l.Error("request log sink panicked",
				slog.String("code", logging.CodeDBError),
				slog.String("kind", string(domain.ErrorKindLoggingSink)),
				slog.Any("panic", r),
			)
		}
	}()

	entry := &domain.RequestLog{
		ID:           d.newID(),
		Trigger:      trigger,
		Method:       spec.Method.String(),
		URL:          spec.URL,
		Body:         spec.Body,
		ContentType:  spec.ContentType,
		StatusCode:   resp.StatusCode,
		ResponseBody: resp.Body,
		Attempt:      attempt,
		LoggedAt:     d.now(),
	}
	if err := d.store.LogRequest(ctx, entry); err != nil {
		l.Error("failed to record request",
			slog.String("code", logging.CodeDBError),
			slog.String("kind", string(domain.ErrorKindLoggingSink)),
			slog.Any("error", err),
		)
		return
	}
	l.Info(d.messages.Sprintf(messages.SaveSuccess), slog.String("code", logging.CodeDBSaved))
}

func (d *Dispatcher) describe(err error) string {
	var cfgErr *request.ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Reason == request.ReasonMissing {
		switch cfgErr.Key {
		case domain.ConfigKeyURL:
			return d.messages.Sprintf(messages.ErrorURLNull)
		case domain.ConfigKeyMethod:
			return d.messages.Sprintf(messages.ErrorMethodNull)
		}
	}
	return err.Error()
}
