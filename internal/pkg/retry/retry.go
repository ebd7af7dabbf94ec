package retry

import (
	"context"
	"time"
)

// Default retry settings
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// Options configures a bounded-retry run. OnRetry is invoked after each
// failed attempt except the final one, with the attempt number (1-based)
// and the error that failed it.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	OnRetry     func(attempt int, err error)
}

// DefaultOptions returns the standard retry settings
func DefaultOptions() Options {
	return Options{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	return o
}

// Delay returns the backoff delay before attempt+1, capped at MaxDelay:
// min(BaseDelay * 2^(attempt-1), MaxDelay).
func (o Options) Delay(attempt int) time.Duration {
	delay := o.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= o.MaxDelay {
			return o.MaxDelay
		}
	}
	if delay > o.MaxDelay {
		return o.MaxDelay
	}
	return delay
}

// Do executes op, retrying with exponential backoff on failure. The last
// error is returned unmodified once MaxAttempts is exhausted. This is the
// only retry mechanism used for outward calls; ad-hoc retry loops are not
// permitted elsewhere.
func Do(ctx context.Context, op func() error, opts Options) error {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt == opts.MaxAttempts {
			break
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Delay(attempt)):
		}
	}

	return lastErr
}
