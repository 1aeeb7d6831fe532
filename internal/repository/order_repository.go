package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/printops/order-sync-api/internal/docstore"
	"github.com/printops/order-sync-api/internal/models"
	"github.com/printops/order-sync-api/pkg/logger"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrStore    = errors.New("store error")
)

// Restricted field subset the sync cycle is allowed to merge into an existing
// materialized order. Everything outside this subset belongs to staff edits
// and must survive every cycle.
var syncFields = [...]string{"status", "is_active", "needs_detail_fetch", "last_updated"}

// OrderRepository is the typed accessor for the materialized orders collection
type OrderRepository struct {
	store  docstore.Store
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(store docstore.Store, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		store:  store,
		logger: logger,
	}
}

// Get retrieves a materialized order document
func (r *OrderRepository) Get(ctx context.Context, orderNumber string) (docstore.Document, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionOrders, orderNumber)

	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return doc, nil
}

// ListAll returns every materialized order document
func (r *OrderRepository) ListAll(ctx context.Context) ([]docstore.Document, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionOrders, nil)

	if err != nil {
		r.logger.Error("Failed to list orders", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return docs, nil
}

// ListExternal returns the externally sourced orders keyed by order number.
// The sync cycle uses this as the previously-known set for inactive marking.
func (r *OrderRepository) ListExternal(ctx context.Context) (map[string]docstore.Document, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionOrders, &docstore.Filter{
		Field: "is_manual",
		Value: false,
	})

	if err != nil {
		r.logger.Error("Failed to list external orders", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	byNumber := make(map[string]docstore.Document, len(docs))
	for _, doc := range docs {
		if num, ok := doc["order_number"].(string); ok {
			byNumber[num] = doc
		}
	}

	return byNumber, nil
}

// CreateExternal writes the full document for an external order seen for the
// first time
func (r *OrderRepository) CreateExternal(ctx context.Context, order *models.Order) error {
	doc, err := order.ToDocument()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if err := r.store.Set(ctx, docstore.CollectionOrders, order.OrderNumber, doc); err != nil {
		r.logger.Error("Failed to create order", "error", err, "orderNumber", order.OrderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// UpsertSyncFields merges only the restricted sync field subset into an
// already-known external order
func (r *OrderRepository) UpsertSyncFields(ctx context.Context, order *models.Order) error {
	doc, err := order.ToDocument()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	partial := docstore.Document{}
	for _, field := range syncFields {
		if v, ok := doc[field]; ok {
			partial[field] = v
		}
	}

	if err := r.store.SetMerged(ctx, docstore.CollectionOrders, order.OrderNumber, partial); err != nil {
		r.logger.Error("Failed to upsert sync fields", "error", err, "orderNumber", order.OrderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// MarkInactive flags an order that vanished from the upstream listings,
// recording the invoice date when one was found
func (r *OrderRepository) MarkInactive(ctx context.Context, orderNumber string, invoiceDate *time.Time) error {
	partial := docstore.Document{
		"is_active":    false,
		"last_updated": models.GetCurrentTime(),
	}

	if invoiceDate != nil {
		partial["invoice_date"] = invoiceDate.UTC()
	}

	if err := r.store.SetMerged(ctx, docstore.CollectionOrders, orderNumber, partial); err != nil {
		r.logger.Error("Failed to mark order inactive", "error", err, "orderNumber", orderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// ListNeedingDetail returns up to limit orders still waiting for their
// line-item detail fetch
func (r *OrderRepository) ListNeedingDetail(ctx context.Context, limit int) ([]*models.Order, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionOrders, &docstore.Filter{
		Field: "needs_detail_fetch",
		Value: true,
		Limit: limit,
	})

	if err != nil {
		r.logger.Error("Failed to list orders needing detail", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	orders := make([]*models.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := models.OrderFromDocument(doc)
		if err != nil {
			r.logger.Warn("Skipping undecodable order document", "error", err)
			continue
		}
		orders = append(orders, order)
	}

	return orders, nil
}

// SetDetail records the enriched aggregate and clears the detail flag
func (r *OrderRepository) SetDetail(ctx context.Context, orderNumber string, totalQuantity int) error {
	partial := docstore.Document{
		"total_quantity":     totalQuantity,
		"needs_detail_fetch": false,
		"last_updated":       models.GetCurrentTime(),
	}

	if err := r.store.SetMerged(ctx, docstore.CollectionOrders, orderNumber, partial); err != nil {
		r.logger.Error("Failed to set order detail", "error", err, "orderNumber", orderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// UpdateFields applies a staff edit to a materialized order. The order must
// already exist.
func (r *OrderRepository) UpdateFields(ctx context.Context, orderNumber string, fields docstore.Document) error {
	if _, err := r.Get(ctx, orderNumber); err != nil {
		return err
	}

	partial := docstore.Document{"last_updated": models.GetCurrentTime()}
	for k, v := range fields {
		if v == nil {
			continue
		}
		partial[k] = v
	}

	if err := r.store.SetMerged(ctx, docstore.CollectionOrders, orderNumber, partial); err != nil {
		r.logger.Error("Failed to update order", "error", err, "orderNumber", orderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}
