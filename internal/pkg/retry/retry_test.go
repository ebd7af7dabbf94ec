package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, fastOptions())

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_FailsThenSucceeds(t *testing.T) {
	// Fails k < maxAttempts times then succeeds: success is returned and
	// the observer fires exactly k times.
	failures := 2
	calls := 0
	var observed []int

	opts := fastOptions()
	opts.OnRetry = func(attempt int, err error) {
		observed = append(observed, attempt)
		assert.Error(t, err)
	}

	err := Do(context.Background(), func() error {
		calls++
		if calls <= failures {
			return errors.New("transient")
		}
		return nil
	}, opts)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, observed)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	// Fails on every attempt: the final error is returned unmodified and
	// the observer fires maxAttempts-1 times (never on the final attempt).
	finalErr := errors.New("still broken")
	calls := 0
	observerCalls := 0

	opts := fastOptions()
	opts.OnRetry = func(attempt int, err error) {
		observerCalls++
	}

	err := Do(context.Background(), func() error {
		calls++
		if calls == opts.MaxAttempts {
			return finalErr
		}
		return errors.New("transient")
	}, opts)

	require.Error(t, err)
	assert.Same(t, finalErr, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, observerCalls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := fastOptions()
	opts.BaseDelay = time.Minute

	calls := 0
	err := Do(ctx, func() error {
		calls++
		return errors.New("transient")
	}, opts)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroOptionsUseDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, DefaultMaxAttempts, opts.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, opts.BaseDelay)
	assert.Equal(t, DefaultMaxDelay, opts.MaxDelay)
}

func TestDelay_ExponentialWithCap(t *testing.T) {
	opts := Options{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}

	assert.Equal(t, 1*time.Second, opts.Delay(1))
	assert.Equal(t, 2*time.Second, opts.Delay(2))
	assert.Equal(t, 4*time.Second, opts.Delay(3))
	assert.Equal(t, 8*time.Second, opts.Delay(4))
	assert.Equal(t, 16*time.Second, opts.Delay(5))
	// Capped at MaxDelay from the sixth attempt on
	assert.Equal(t, 30*time.Second, opts.Delay(6))
	assert.Equal(t, 30*time.Second, opts.Delay(9))
}
