package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/printops/order-sync-api/internal/docstore"
	"github.com/printops/order-sync-api/internal/models"
	"github.com/printops/order-sync-api/pkg/logger"
)

// OverrideRepository is the typed accessor for field-level override patches
// layered onto externally sourced orders at read time
type OverrideRepository struct {
	store  docstore.Store
	logger logger.Logger
}

// NewOverrideRepository creates a new OverrideRepository
func NewOverrideRepository(store docstore.Store, logger logger.Logger) *OverrideRepository {
	return &OverrideRepository{
		store:  store,
		logger: logger,
	}
}

// ListAll returns every override document keyed by order number
func (r *OverrideRepository) ListAll(ctx context.Context) (map[string]docstore.Document, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionOverrides, nil)

	if err != nil {
		r.logger.Error("Failed to list overrides", "error", err)
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

// SetFields merges a sparse staff patch into the override record
func (r *OverrideRepository) SetFields(ctx context.Context, orderNumber string, fields docstore.Document) error {
	partial := docstore.Document{"order_number": orderNumber}
	for k, v := range fields {
		if v == nil {
			continue
		}
		partial[k] = v
	}

	if err := r.store.SetMerged(ctx, docstore.CollectionOverrides, orderNumber, partial); err != nil {
		r.logger.Error("Failed to set override fields", "error", err, "orderNumber", orderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// Delete removes an override record entirely, reverting the order to its
// externally sourced fields on the next read
func (r *OverrideRepository) Delete(ctx context.Context, orderNumber string) error {
	err := r.store.Delete(ctx, docstore.CollectionOverrides, orderNumber)

	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		r.logger.Error("Failed to delete override", "error", err, "orderNumber", orderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// SetPrintDateRange sets or clears the scheduling window override for an
// externally sourced order
func (r *OverrideRepository) SetPrintDateRange(ctx context.Context, orderNumber string, rng *models.PrintDateRange) error {
	return setPrintDateRange(ctx, r.store, docstore.CollectionOverrides, orderNumber, rng, r.logger)
}

// setPrintDateRange is shared between the manual order and override
// repositories: a nil range clears the field, anything else merge-writes it.
func setPrintDateRange(ctx context.Context, store docstore.Store, collection, orderNumber string, rng *models.PrintDateRange, log logger.Logger) error {
	if rng == nil {
		err := store.DeleteField(ctx, collection, orderNumber, "print_date_range")

		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			log.Error("Failed to clear print date range", "error", err, "orderNumber", orderNumber)
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
		return nil
	}

	raw, err := json.Marshal(rng)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	var rangeDoc map[string]interface{}
	if err := json.Unmarshal(raw, &rangeDoc); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	partial := docstore.Document{
		"order_number":     orderNumber,
		"print_date_range": rangeDoc,
	}

	if err := store.SetMerged(ctx, collection, orderNumber, partial); err != nil {
		log.Error("Failed to set print date range", "error", err, "orderNumber", orderNumber)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}
