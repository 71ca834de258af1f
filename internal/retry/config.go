package retry

import (
	"errors"
	"time"
)

type Config struct {
	MaxAttempts    int
	Delay          time.Duration // fixed wait between attempts
	AttemptTimeout time.Duration // connect + read, per attempt
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		Delay:          2 * time.Second,
		AttemptTimeout: 5 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if c.Delay < 0 {
		return errors.New("delay must not be negative")
	}
	if c.AttemptTimeout <= 0 {
		return errors.New("attempt timeout must be positive")
	}
	return nil
}

// ShouldRetry reports whether another attempt may follow the given
// number of completed attempts.
func (c Config) ShouldRetry(attempts int) bool {
	return attempts < c.MaxAttempts
}

// WorstCase is the longest a dispatch can block under this policy.
func (c Config) WorstCase() time.Duration {
	return time.Duration(c.MaxAttempts) * (c.AttemptTimeout + c.Delay)
}
