package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/printops/order-sync-api/pkg/logger"
)

// RetryableFunc defines a function that can be retried
type RetryableFunc func() error

// Config holds the configuration for retrying operations
type Config struct {
	MaxAttempts     int
	BackoffStrategy BackoffStrategy
	Logger          logger.Logger
	RetryableErrors []error // errors worth retrying; empty means retry everything
}

// Do runs fn up to MaxAttempts times, backing off between attempts.
// A context cancellation aborts immediately, including mid-backoff.
func Do(ctx context.Context, fn RetryableFunc, cfg *Config) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled by context: %w", ctx.Err())
		default:
		}

		err := fn()

		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		if !isRetryable(err, cfg.RetryableErrors) {
			cfg.Logger.Warn("Non-retryable error encountered, giving up",
				"error", err,
				"attempt", attempt)
			return err
		}

		backoff := cfg.BackoffStrategy.NextBackoff(attempt)

		cfg.Logger.Debug("Retrying after error",
			"error", err,
			"attempt", attempt,
			"maxAttempts", cfg.MaxAttempts,
			"backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled by context during backoff: %w", ctx.Err())
		}
	}

	return fmt.Errorf("all %d retry attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}

// retryable is implemented by errors that carry their own retry decision
type retryable interface {
	IsRetryable() bool
}

func isRetryable(err error, retryableErrors []error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	if len(retryableErrors) == 0 {
		return true
	}

	for _, retryableErr := range retryableErrors {
		if errors.Is(err, retryableErr) {
			return true
		}
	}

	return false
}
