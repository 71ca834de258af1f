package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lupppig/notifyhttp/internal/retry"
)

const (
	DefaultConfigFileName = ".notifyhttp.yaml"
	DefaultLocale         = "en-US"
	DefaultLogLevel       = "info"
)

const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNATS     = "nats"
)

type Config struct {
	Retry  RetryConfig `yaml:"retry"`
	Store  StoreConfig `yaml:"store"`
	Log    LogConfig   `yaml:"log"`
	Locale string      `yaml:"locale"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	Delay          time.Duration `yaml:"delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

type StoreConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultConfig() *Config {
	policy := retry.DefaultConfig()
	return &Config{
		Retry: RetryConfig{
			MaxAttempts:    policy.MaxAttempts,
			Delay:          policy.Delay,
			AttemptTimeout: policy.AttemptTimeout,
		},
		Store:  StoreConfig{Driver: DriverNone},
		Log:    LogConfig{Level: DefaultLogLevel},
		Locale: DefaultLocale,
	}
}

// RetryPolicy converts the retry section into the dispatcher's policy.
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxAttempts:    c.Retry.MaxAttempts,
		Delay:          c.Retry.Delay,
		AttemptTimeout: c.Retry.AttemptTimeout,
	}
}

func (c *Config) Validate() error {
	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	switch c.Store.Driver {
	case DriverNone:
	case DriverPostgres, DriverSQLite, DriverNATS:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return l, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, DefaultConfigFileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if driver := os.Getenv("NOTIFYHTTP_STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if dsn := os.Getenv("NOTIFYHTTP_STORE_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if level := os.Getenv("NOTIFYHTTP_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if locale := os.Getenv("NOTIFYHTTP_LOCALE"); locale != "" {
		cfg.Locale = locale
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverNone
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
