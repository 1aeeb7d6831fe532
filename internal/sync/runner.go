package sync

import (
	"context"
	"sync"
	"time"

	"github.com/printops/order-sync-api/pkg/logger"
)

// Runner triggers the reconciliation cycle on a fixed interval
type Runner struct {
	reconciler *Reconciler
	interval   time.Duration
	logger     logger.Logger
	onCycle    func(*CycleResult)
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex
}

// OnCycle registers a callback invoked after every completed cycle.
// Must be called before Start.
func (r *Runner) OnCycle(fn func(*CycleResult)) {
	r.onCycle = fn
}

// NewRunner creates a new Runner
func NewRunner(reconciler *Reconciler, interval time.Duration, logger logger.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		reconciler: reconciler,
		interval:   interval,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the periodic sync loop
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}

	r.running = true
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		r.loop()
	}()

	r.logger.Info("Sync runner started", "interval", r.interval)
}

// Stop stops the loop and waits for an in-flight cycle to finish
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	r.cancel()
	r.wg.Wait()
	r.running = false

	r.logger.Info("Sync runner stopped")
}

func (r *Runner) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(r.ctx, r.interval)

			result, err := r.reconciler.RunCycle(ctx)
			if err != nil {
				r.logger.Error("Sync cycle failed", "error", err)
			} else if r.onCycle != nil {
				r.onCycle(result)
			}

			cancel()
		}
	}
}
