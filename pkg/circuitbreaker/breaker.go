package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the state of the circuit breaker
type State int

const (
	StateClosed   State = iota // normal operation, calls allowed
	StateOpen                  // tripped, calls rejected
	StateHalfOpen              // probing whether the upstream recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a CircuitBreaker
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	ResetTimeout     time.Duration // how long to stay open before probing
	HalfOpenMaxCalls int           // probe calls allowed while half-open
}

// CircuitBreaker sheds calls to an upstream that keeps failing, giving it
// time to recover before probing again.
type CircuitBreaker struct {
	cfg             Config
	state           State
	failureCount    int
	halfOpenCalls   int
	lastStateChange time.Time
	mu              sync.Mutex
}

// New creates a circuit breaker in the closed state
func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:             cfg,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Allow reports whether a call may proceed under the current state
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastStateChange) >= cb.cfg.ResetTimeout {
			cb.transition(StateHalfOpen)
			cb.halfOpenCalls = 1
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.cfg.HalfOpenMaxCalls {
			cb.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// Success reports a successful call
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0

	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
}

// Failure reports a failed call
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition must be called with the mutex held
func (cb *CircuitBreaker) transition(next State) {
	cb.state = next
	cb.lastStateChange = time.Now()
	if next != StateHalfOpen {
		cb.halfOpenCalls = 0
	}
}
