package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/printops/order-sync-api/pkg/errors"
	"github.com/printops/order-sync-api/pkg/logger"
)

func testConfig(maxAttempts int, retryable ...error) *Config {
	return &Config{
		MaxAttempts:     maxAttempts,
		BackoffStrategy: &ConstantBackoff{Interval: time.Millisecond},
		Logger:          logger.NewNop(),
		RetryableErrors: retryable,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, testConfig(3))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, testConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), func() error {
		calls++
		return boom
	}, testConfig(3))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryableSentinel(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	transient := errors.New("transient")

	err := Do(context.Background(), func() error {
		calls++
		return fatal
	}, testConfig(3, transient))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsErrorRetryFlag(t *testing.T) {
	// The error wraps a sentinel from the retryable list, but carries its
	// own non-retryable verdict, which wins.
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return apperrors.NewAppError(apperrors.ErrUpstream, "403 from upstream", 403, false)
	}, testConfig(3, apperrors.ErrUpstream))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoContextCancellationMidBackoff(t *testing.T) {
	cfg := &Config{
		MaxAttempts:     5,
		BackoffStrategy: &ConstantBackoff{Interval: time.Hour},
		Logger:          logger.NewNop(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := Do(ctx, func() error {
		calls++
		return errors.New("transient")
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	b := &ExponentialBackoff{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		JitterFactor:    0,
	}

	assert.Equal(t, 100*time.Millisecond, b.NextBackoff(1))
	assert.Equal(t, 200*time.Millisecond, b.NextBackoff(2))
	assert.Equal(t, 400*time.Millisecond, b.NextBackoff(3))
	assert.Equal(t, time.Second, b.NextBackoff(10))
}
