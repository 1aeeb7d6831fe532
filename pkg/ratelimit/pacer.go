package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum spacing between successive calls. Concurrent
// callers are serialized, so at most one paced call is in flight at a time.
type Pacer struct {
	minInterval time.Duration
	lastCall    time.Time
	mu          sync.Mutex
}

// NewPacer creates a pacer with the given minimum interval between calls
func NewPacer(minInterval time.Duration) *Pacer {
	return &Pacer{minInterval: minInterval}
}

// Wait blocks until the minimum interval since the previous call has elapsed,
// or until the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastCall.IsZero() {
		wait := p.minInterval - time.Since(p.lastCall)

		if wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()

			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	p.lastCall = time.Now()
	return nil
}
