package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupppig/notifyhttp/internal/config"
	"github.com/lupppig/notifyhttp/internal/dispatch"
	"github.com/lupppig/notifyhttp/internal/logging"
	"github.com/lupppig/notifyhttp/internal/messages"
	"github.com/lupppig/notifyhttp/internal/store"
)

var (
	cfgPath   string
	logLevel  string
	jsonOut   bool
	timeout   time.Duration
	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "notifyhttp",
	Short: "Send HTTP notifications with retries and a request log",
	Long: `notifyhttp issues a single HTTP request for a notification event,
retries on transport failure, and records every completed exchange.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		level, err := config.ParseLevel(loaded.Log.Level)
		if err != nil {
			return err
		}
		cfg = loaded
		closer, err := logging.Init(level, loaded.Log.File)
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Configuration file path (default ~/.notifyhttp.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Overall command timeout (0 means none)")
}

func IsJSONOutput() bool {
	return jsonOut
}

func currentConfig() *config.Config {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg
}

// NewCommandContext applies the --timeout flag.
func NewCommandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

// openStore is swapped in tests.
var openStore = store.Open

func newDispatcher(ctx context.Context) (*dispatch.Dispatcher, store.RequestLogStore, error) {
	c := currentConfig()
	sink, err := openStore(ctx, c.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open request log: %w", err)
	}

	d, err := dispatch.New(dispatch.Options{
		Retry:    c.RetryPolicy(),
		Store:    sink,
		Logger:   slog.Default(),
		Messages: messages.New(messages.Parse(c.Locale)),
	})
	if err != nil {
		sink.Close()
		return nil, nil, err
	}
	return d, sink, nil
}
