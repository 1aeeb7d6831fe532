// Package enrichment fills in per-order line-item totals after the fact. The
// upstream detail endpoint is strictly rate limited, so the worker fetches
// serially, paces every call, and caps each invocation's batch.
package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/printops/order-sync-api/internal/repository"
	"github.com/printops/order-sync-api/pkg/circuitbreaker"
	"github.com/printops/order-sync-api/pkg/logger"
	"github.com/printops/order-sync-api/pkg/ratelimit"
)

// DetailSource is the slice of the fulfillment-system client the worker needs
type DetailSource interface {
	GetSaleDetail(ctx context.Context, saleID string) (int, error)
}

// Config holds the worker configuration
type Config struct {
	Interval    time.Duration // how often a batch runs
	BatchSize   int           // max orders per invocation, sized to the upstream per-minute quota
	MinSpacing  time.Duration // enforced gap between detail calls
}

// Worker periodically enriches orders flagged as needing detail
type Worker struct {
	source  DetailSource
	orders  *repository.OrderRepository
	cfg     Config
	pacer   *ratelimit.Pacer
	breaker *circuitbreaker.CircuitBreaker
	onFetch func(ok bool)
	logger  logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewWorker creates a new Worker
func NewWorker(source DetailSource, orders *repository.OrderRepository, cfg Config, logger logger.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		source: source,
		orders: orders,
		cfg:    cfg,
		pacer:  ratelimit.NewPacer(cfg.MinSpacing),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: 5,
			ResetTimeout:     2 * time.Minute,
			HalfOpenMaxCalls: 1,
		}),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnFetch registers a callback invoked after every detail fetch attempt.
// Must be called before Start.
func (w *Worker) OnFetch(fn func(ok bool)) {
	w.onFetch = fn
}

// Start starts the periodic enrichment loop
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		w.loop()
	}()

	w.logger.Info("Enrichment worker started",
		"interval", w.cfg.Interval,
		"batchSize", w.cfg.BatchSize,
		"minSpacing", w.cfg.MinSpacing)
}

// Stop stops the loop and waits for an in-flight batch to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.cancel()
	w.wg.Wait()
	w.running = false

	w.logger.Info("Enrichment worker stopped")
}

func (w *Worker) loop() {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(w.ctx); err != nil {
				w.logger.Error("Enrichment batch failed", "error", err)
			}
		}
	}
}

// ProcessBatch enriches up to BatchSize flagged orders, serially and paced.
// A failed fetch leaves the order flagged for the next invocation and never
// blocks the rest of the batch. Returns the number of orders enriched.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	orders, err := w.orders.ListNeedingDetail(ctx, w.cfg.BatchSize)

	if err != nil {
		return 0, err
	}

	if len(orders) == 0 {
		w.logger.Debug("No orders need detail enrichment")
		return 0, nil
	}

	w.logger.Info("Enriching order details", "count", len(orders))

	processed := 0

	for _, order := range orders {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		if order.SaleID == "" {
			w.logger.Warn("Order flagged for detail but has no sale ID",
				"orderNumber", order.OrderNumber)
			continue
		}

		if !w.breaker.Allow() {
			w.logger.Warn("Detail endpoint circuit open, deferring remaining orders",
				"state", w.breaker.GetState(),
				"remaining", len(orders)-processed)
			return processed, nil
		}

		if err := w.pacer.Wait(ctx); err != nil {
			return processed, err
		}

		total, err := w.source.GetSaleDetail(ctx, order.SaleID)

		if w.onFetch != nil {
			w.onFetch(err == nil)
		}

		if err != nil {
			w.breaker.Failure()
			w.logger.Error("Detail fetch failed, order stays flagged for retry",
				"orderNumber", order.OrderNumber,
				"saleID", order.SaleID,
				"error", err)
			continue
		}
		w.breaker.Success()

		if err := w.orders.SetDetail(ctx, order.OrderNumber, total); err != nil {
			w.logger.Error("Failed to persist order detail",
				"orderNumber", order.OrderNumber,
				"error", err)
			continue
		}

		processed++
	}

	w.logger.Info("Enrichment batch complete", "processed", processed, "batch", len(orders))
	return processed, nil
}
