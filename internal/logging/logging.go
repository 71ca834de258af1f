package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

type contextKey string

const (
	DispatchIDKey contextKey = "dispatch_id"
	TriggerKey    contextKey = "trigger"
)

// Log codes attached to every line as the "code" attribute.
const (
	CodeDispatchStart = "DISPATCH_START"
	CodeConfigError   = "CFG_ERROR"
	CodeRequestBuilt  = "REQ_BUILT"
	CodeAttemptFailed = "DEL_ATTEMPT_FAILED"
	CodeNonSuccess    = "DEL_NON_SUCCESS"
	CodeSuccess       = "DEL_SUCCESS"
	CodeFailed        = "DEL_FAILED"
	CodeDBError       = "DB_ERROR"
	CodeDBSaved       = "DB_SAVED"
	CodeInternalError = "SYS_ERR"
	CodeStartup       = "SYS_STARTUP"
)

const timeLayout = "2006:01:02:15:04:05"

// MultiHandler sends log records to multiple handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	// Custom time format: yyyy:mm:dd:HH:MM:SS -> 2006:01:02:15:04:05
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(a.Key, t.Format(timeLayout))
				}
			}
			return a
		},
	}
}

// New builds a text logger on out and, when filePath is set, a JSON copy
// appended to that file. The returned closer releases the file.
func New(out io.Writer, level slog.Level, filePath string) (*slog.Logger, io.Closer, error) {
	opts := handlerOptions(level)
	textHandler := slog.NewTextHandler(out, opts)
	if filePath == "" {
		return slog.New(textHandler), nopCloser{}, nil
	}

	logFile, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return slog.New(textHandler), nopCloser{}, fmt.Errorf("open log file %s: %w", filePath, err)
	}

	jsonHandler := slog.NewJSONHandler(logFile, opts)
	return slog.New(NewMultiHandler(textHandler, jsonHandler)), logFile, nil
}

// Init installs a stdout logger as the process default.
func Init(level slog.Level, filePath string) (io.Closer, error) {
	logger, closer, err := New(os.Stdout, level, filePath)
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("failed to open log file", slog.String("code", CodeStartup), slog.Any("error", err))
	}
	return closer, err
}

// FromContext decorates base (or the default logger) with the dispatch
// attributes stored in ctx.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	l := base
	if l == nil {
		l = slog.Default()
	}
	if val, ok := ctx.Value(DispatchIDKey).(string); ok {
		l = l.With("dispatch_id", val)
	}
	if val, ok := ctx.Value(TriggerKey).(string); ok {
		l = l.With("trigger", val)
	}
	return l
}

func WithDispatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, DispatchIDKey, id)
}

func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, TriggerKey, trigger)
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
