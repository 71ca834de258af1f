package retry

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// BackOff returns a fresh constant-delay policy allowing MaxAttempts
// executions in total. A new value must be built for every dispatch.
func (c Config) BackOff(ctx context.Context) backoff.BackOff {
	maxRetries := 0
	if c.MaxAttempts > 1 {
		maxRetries = c.MaxAttempts - 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.Delay), uint64(maxRetries))
	if ctx == nil {
		return b
	}
	return backoff.WithContext(b, ctx)
}
