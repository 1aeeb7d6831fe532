package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/printops/order-sync-api/internal/docstore"
	"github.com/printops/order-sync-api/internal/models"
	"github.com/printops/order-sync-api/pkg/logger"
)

// ManualOrderRepository is the typed accessor for staff-created orders. The
// sync cycle never touches this collection.
type ManualOrderRepository struct {
	store  docstore.Store
	logger logger.Logger
}

// NewManualOrderRepository creates a new ManualOrderRepository
func NewManualOrderRepository(store docstore.Store, logger logger.Logger) *ManualOrderRepository {
	return &ManualOrderRepository{
		store:  store,
		logger: logger,
	}
}

// Create writes a manual order, prefixing the order number to keep the
// keyspace disjoint from externally sourced orders
func (r *ManualOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if !strings.HasPrefix(order.OrderNumber, models.ManualPrefix) {
		order.OrderNumber = models.ManualPrefix + order.OrderNumber
	}
	order.IsManual = true
	order.IsActive = true
	order.LastUpdated = models.GetCurrentTime()

	doc, err := order.ToDocument()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if err := r.store.SetMerged(ctx, docstore.CollectionManualOrders, order.OrderNumber, doc); err != nil {
		r.logger.Error("Failed to create manual order", "error", err, "orderNumber", order.OrderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// Exists reports whether a manual order with the given number exists
func (r *ManualOrderRepository) Exists(ctx context.Context, orderNumber string) (bool, error) {
	_, err := r.store.Get(ctx, docstore.CollectionManualOrders, orderNumber)

	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return true, nil
}

// ListAll returns every manual order document
func (r *ManualOrderRepository) ListAll(ctx context.Context) ([]docstore.Document, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionManualOrders, nil)

	if err != nil {
		r.logger.Error("Failed to list manual orders", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return docs, nil
}

// UpdateFields applies a staff edit to an existing manual order
func (r *ManualOrderRepository) UpdateFields(ctx context.Context, orderNumber string, fields docstore.Document) error {
	exists, err := r.Exists(ctx, orderNumber)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	partial := docstore.Document{"last_updated": models.GetCurrentTime()}
	for k, v := range fields {
		if v == nil {
			continue
		}
		partial[k] = v
	}

	if err := r.store.SetMerged(ctx, docstore.CollectionManualOrders, orderNumber, partial); err != nil {
		r.logger.Error("Failed to update manual order", "error", err, "orderNumber", orderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// Delete removes a manual order
func (r *ManualOrderRepository) Delete(ctx context.Context, orderNumber string) error {
	err := r.store.Delete(ctx, docstore.CollectionManualOrders, orderNumber)

	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		r.logger.Error("Failed to delete manual order", "error", err, "orderNumber", orderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// SetPrintDateRange sets or clears the scheduling window on a manual order
func (r *ManualOrderRepository) SetPrintDateRange(ctx context.Context, orderNumber string, rng *models.PrintDateRange) error {
	return setPrintDateRange(ctx, r.store, docstore.CollectionManualOrders, orderNumber, rng, r.logger)
}
