package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		MaxRetries:      3,
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastConfig())

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return transient
	}, fastConfig())

	require.Error(t, err)
	assert.True(t, errors.Is(err, transient))
	assert.Equal(t, 4, calls, "initial attempt plus MaxRetries")
}

func TestWithRetryStopError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return Stop(permanent)
	}, fastConfig())

	require.Error(t, err)
	assert.Equal(t, permanent, err, "Stop unwraps to the original error")
	assert.Equal(t, 1, calls)
}

func TestWithRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig()
	cfg.InitialInterval = time.Minute // would block without cancellation

	err := WithRetry(ctx, func() error {
		return errors.New("transient")
	}, cfg)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	cfg := BackoffConfig{
		InitialInterval: time.Second,
		MaxInterval:     4 * time.Second,
		Multiplier:      2.0,
	}
	backoff := ExponentialBackoff(cfg)

	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, 4*time.Second, backoff(3))
	assert.Equal(t, 4*time.Second, backoff(10), "capped at MaxInterval")
}
