package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker(resetTimeout time.Duration) *CircuitBreaker {
	return New(Config{
		FailureThreshold: 3,
		ResetTimeout:     resetTimeout,
		HalfOpenMaxCalls: 1,
	})
}

func TestBreakerStaysClosedUnderThreshold(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.True(t, cb.Allow())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	cb.Failure()
	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	cb.Failure()
	cb.Failure()
	cb.Success()
	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	cb := newTestBreaker(10 * time.Millisecond)

	cb.Failure()
	cb.Failure()
	cb.Failure()
	assert.False(t, cb.Allow())

	time.Sleep(20 * time.Millisecond)

	// One probe allowed, further calls shed until it resolves
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.GetState())
	assert.False(t, cb.Allow())

	cb.Success()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.True(t, cb.Allow())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	cb := newTestBreaker(10 * time.Millisecond)

	cb.Failure()
	cb.Failure()
	cb.Failure()
	time.Sleep(20 * time.Millisecond)

	assert.True(t, cb.Allow())
	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.Allow())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
