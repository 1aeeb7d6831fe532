package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy computes the wait before the next attempt
type BackoffStrategy interface {
	// NextBackoff returns the backoff duration for the given attempt number (1-based)
	NextBackoff(attempt int) time.Duration
}

// ConstantBackoff waits the same interval between every attempt
type ConstantBackoff struct {
	Interval time.Duration
}

// NextBackoff returns the constant interval
func (b *ConstantBackoff) NextBackoff(attempt int) time.Duration {
	return b.Interval
}

// ExponentialBackoff grows the wait geometrically and adds jitter
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NextBackoff calculates the next exponentially increasing backoff duration with jitter
func (b *ExponentialBackoff) NextBackoff(attempt int) time.Duration {
	backoff := float64(b.InitialInterval) * math.Pow(b.Multiplier, float64(attempt-1))

	if b.JitterFactor > 0 {
		backoff += rand.Float64() * b.JitterFactor * backoff
	}

	if backoff > float64(b.MaxInterval) {
		backoff = float64(b.MaxInterval)
	}

	return time.Duration(backoff)
}

// NewDefaultExponentialBackoff creates the backoff used by the external clients
func NewDefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      1.5,
		JitterFactor:    0.2,
	}
}
