// Package sync implements the reconciliation engine: it merges the current
// listings of both external order systems into the materialized orders
// collection and retires orders that no longer appear upstream.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/printops/order-sync-api/internal/docstore"
	"github.com/printops/order-sync-api/internal/models"
	"github.com/printops/order-sync-api/internal/repository"
	"github.com/printops/order-sync-api/pkg/logger"
)

// Cin7Source is the slice of the fulfillment-system client the engine needs
type Cin7Source interface {
	ListPackedSales(ctx context.Context) ([]*models.Order, error)
	FindInvoiceDate(ctx context.Context, orderNumber string) (*time.Time, error)
}

// PrintavoSource is the slice of the quoting-system client the engine needs
type PrintavoSource interface {
	ListOpenOrders(ctx context.Context) ([]*models.Order, error)
}

// EventPublisher receives best-effort order lifecycle events. Publish must
// never fail the cycle.
type EventPublisher interface {
	Publish(event *models.OrderEvent)
}

// CycleResult summarizes one reconciliation cycle
type CycleResult struct {
	CycleID        string
	Fetched        int
	Discovered     int
	Updated        int
	Deactivated    int
	Cin7Failed     bool
	PrintavoFailed bool
}

// Reconciler runs the merge algorithm against the materialized collection
type Reconciler struct {
	cin7      Cin7Source
	printavo  PrintavoSource
	orders    *repository.OrderRepository
	publisher EventPublisher
	logger    logger.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(
	cin7 Cin7Source,
	printavo PrintavoSource,
	orders *repository.OrderRepository,
	publisher EventPublisher,
	logger logger.Logger,
) *Reconciler {
	if publisher == nil {
		publisher = NopPublisher{}
	}

	return &Reconciler{
		cin7:      cin7,
		printavo:  printavo,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
	}
}

// RunCycle executes one sync cycle. Adapter failures degrade to a zero
// contribution from that source; store write failures are logged and left for
// the next cycle to repair. Only a failure to read the previously-known set
// aborts the cycle, because without it the engine cannot tell creations from
// updates or disappearances.
func (r *Reconciler) RunCycle(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{CycleID: models.GenerateID("sync")}

	cin7Orders, printavoOrders := r.fetchListings(ctx, result)

	// The previously-known external set is loaded before any write so the
	// disappearance check never sees this cycle's own writes.
	known, err := r.orders.ListExternal(ctx)

	if err != nil {
		r.logger.Error("Sync cycle aborted: cannot read known orders",
			"cycleID", result.CycleID,
			"error", err)
		return result, err
	}

	seen := make(map[string]bool)

	for _, order := range append(cin7Orders, printavoOrders...) {
		if seen[order.OrderNumber] {
			continue
		}
		seen[order.OrderNumber] = true
		result.Fetched++

		if _, ok := known[order.OrderNumber]; !ok {
			if err := r.orders.CreateExternal(ctx, order); err != nil {
				r.logger.Error("Failed to create order, will retry next cycle",
					"cycleID", result.CycleID,
					"orderNumber", order.OrderNumber,
					"error", err)
				continue
			}
			result.Discovered++
			r.publisher.Publish(models.NewOrderDiscoveredEvent(order))
			continue
		}

		// Known order: merge only the sync field subset so staff edits on
		// the materialized record survive.
		if err := r.orders.UpsertSyncFields(ctx, order); err != nil {
			r.logger.Error("Failed to upsert order, will retry next cycle",
				"cycleID", result.CycleID,
				"orderNumber", order.OrderNumber,
				"error", err)
			continue
		}
		result.Updated++
	}

	r.markDisappeared(ctx, result, known, seen)

	r.logger.Info("Sync cycle complete",
		"cycleID", result.CycleID,
		"fetched", result.Fetched,
		"discovered", result.Discovered,
		"updated", result.Updated,
		"deactivated", result.Deactivated,
		"cin7Failed", result.Cin7Failed,
		"printavoFailed", result.PrintavoFailed)

	return result, nil
}

// fetchListings calls both adapters concurrently. A failure on either side is
// logged and contributes zero orders; it is never treated as orders having
// disappeared.
func (r *Reconciler) fetchListings(ctx context.Context, result *CycleResult) ([]*models.Order, []*models.Order) {
	var (
		wg             sync.WaitGroup
		cin7Orders     []*models.Order
		printavoOrders []*models.Order
		cin7Err        error
		printavoErr    error
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		cin7Orders, cin7Err = r.cin7.ListPackedSales(ctx)
	}()

	go func() {
		defer wg.Done()
		printavoOrders, printavoErr = r.printavo.ListOpenOrders(ctx)
	}()

	wg.Wait()

	if cin7Err != nil {
		result.Cin7Failed = true
		r.logger.Error("Cin7 listing failed, contributing zero orders this cycle",
			"cycleID", result.CycleID,
			"error", cin7Err)
	}

	if printavoErr != nil {
		result.PrintavoFailed = true
		r.logger.Error("Printavo listing failed, contributing zero orders this cycle",
			"cycleID", result.CycleID,
			"error", printavoErr)
	}

	return cin7Orders, printavoOrders
}

// markDisappeared retires known external orders that are absent from the
// union of this cycle's listings. Orders whose origin adapter failed this
// cycle are skipped: an unreachable source must not look like a mass
// cancellation.
func (r *Reconciler) markDisappeared(ctx context.Context, result *CycleResult, known map[string]docstore.Document, seen map[string]bool) {
	for orderNumber, doc := range known {
		if seen[orderNumber] {
			continue
		}

		switch models.OrderOrigin(orderNumber) {
		case models.OriginCin7:
			if result.Cin7Failed {
				continue
			}
		case models.OriginPrintavo:
			if result.PrintavoFailed {
				continue
			}
		}

		// Already inactive: nothing to retire, and no event to re-publish.
		if active, ok := doc["is_active"].(bool); ok && !active {
			continue
		}

		var invoiceDate *time.Time
		if models.OrderOrigin(orderNumber) == models.OriginCin7 && !hasInvoiceDate(doc) {
			date, err := r.cin7.FindInvoiceDate(ctx, orderNumber)
			if err != nil {
				r.logger.Warn("Best-effort invoice date lookup failed",
					"cycleID", result.CycleID,
					"orderNumber", orderNumber,
					"error", err)
			} else {
				invoiceDate = date
			}
		}

		if err := r.orders.MarkInactive(ctx, orderNumber, invoiceDate); err != nil {
			r.logger.Error("Failed to mark order inactive, will retry next cycle",
				"cycleID", result.CycleID,
				"orderNumber", orderNumber,
				"error", err)
			continue
		}

		result.Deactivated++
		r.publisher.Publish(models.NewOrderDeactivatedEvent(orderNumber))
	}
}

func hasInvoiceDate(doc docstore.Document) bool {
	v, ok := doc["invoice_date"]
	if !ok || v == nil {
		return false
	}
	s, isString := v.(string)
	return !isString || s != ""
}
