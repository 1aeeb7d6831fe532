package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/printops/order-sync-api/internal/docstore"
	"github.com/printops/order-sync-api/internal/models"
	"github.com/printops/order-sync-api/internal/repository"
	apperrors "github.com/printops/order-sync-api/pkg/errors"
	"github.com/printops/order-sync-api/pkg/logger"
)

// SalesService serves the combined order list and handles staff writes. The
// read path is where override precedence lives: overrides are overlaid
// field-by-field on every read instead of being baked into the materialized
// records, so deleting an override reverts the order to its source fields.
type SalesService struct {
	orders    *repository.OrderRepository
	manual    *repository.ManualOrderRepository
	overrides *repository.OverrideRepository
	logger    logger.Logger
}

// NewSalesService creates a new SalesService
func NewSalesService(
	orders *repository.OrderRepository,
	manual *repository.ManualOrderRepository,
	overrides *repository.OverrideRepository,
	logger logger.Logger,
) *SalesService {
	return &SalesService{
		orders:    orders,
		manual:    manual,
		overrides: overrides,
		logger:    logger,
	}
}

// ListSales returns the merged view: materialized external orders with
// overrides applied, plus all manual orders appended unconditionally. Manual
// orders are never deduplicated against external ones; the namespace prefix
// keeps the keyspaces apart, and if a collision happens anyway both rows are
// surfaced.
func (s *SalesService) ListSales(ctx context.Context) ([]*models.Order, error) {
	docs, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	overrides, err := s.overrides.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	sales := make([]*models.Order, 0, len(docs))

	for _, doc := range docs {
		orderNumber, _ := doc["order_number"].(string)

		if patch, ok := overrides[orderNumber]; ok && models.OrderOrigin(orderNumber) != models.OriginManual {
			doc = applyOverride(doc, patch)
		}

		order, err := models.OrderFromDocument(doc)
		if err != nil {
			s.logger.Warn("Skipping undecodable order document", "orderNumber", orderNumber, "error", err)
			continue
		}

		sales = append(sales, order)
	}

	manualDocs, err := s.manual.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, doc := range manualDocs {
		order, err := models.OrderFromDocument(doc)
		if err != nil {
			s.logger.Warn("Skipping undecodable manual order document", "error", err)
			continue
		}
		sales = append(sales, order)
	}

	return sales, nil
}

// applyOverride layers the sparse patch over the source document, present
// fields winning. The join key itself is never overridden.
func applyOverride(doc, patch docstore.Document) docstore.Document {
	merged := make(docstore.Document, len(doc)+len(patch))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range patch {
		if k == "order_number" {
			continue
		}
		merged[k] = v
	}
	return merged
}

// AddOrderRequest is the staff input for creating a manual order
type AddOrderRequest struct {
	OrderNumber    string
	Customer       string
	OrderDate      string // RFC3339 or YYYY-MM-DD
	Status         string
	TotalQuantity  *int
	PrintDateRange *models.PrintDateRange
}

// AddManualOrder validates and creates a staff-entered order. The order
// number gets the manual namespace prefix and the order is never touched by
// the sync cycle.
func (s *SalesService) AddManualOrder(ctx context.Context, req AddOrderRequest) (*models.Order, error) {
	if req.OrderNumber == "" || req.Customer == "" || req.OrderDate == "" || req.Status == "" || req.TotalQuantity == nil {
		return nil, apperrors.NewValidationError("missing required fields")
	}

	orderDate, err := ParseDate(req.OrderDate)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid order date: %v", err))
	}

	order := &models.Order{
		OrderNumber:    req.OrderNumber,
		Customer:       req.Customer,
		OrderDate:      orderDate,
		Status:         req.Status,
		TotalQuantity:  req.TotalQuantity,
		PrintDateRange: req.PrintDateRange,
	}

	if err := s.manual.Create(ctx, order); err != nil {
		return nil, apperrors.NewStoreWriteError(fmt.Sprintf("failed to save manual order: %v", err))
	}

	s.logger.Info("Manual order created", "orderNumber", order.OrderNumber)
	return order, nil
}

// UpdateOrder applies a staff field edit. Manual orders are edited in place;
// edits to externally sourced orders become override records so the next sync
// cycle cannot undo them.
func (s *SalesService) UpdateOrder(ctx context.Context, orderNumber string, fields docstore.Document) error {
	if orderNumber == "" || len(fields) == 0 {
		return apperrors.NewValidationError("missing required fields")
	}

	isManual, err := s.manual.Exists(ctx, orderNumber)
	if err != nil {
		return apperrors.NewStoreWriteError(fmt.Sprintf("failed to look up order: %v", err))
	}

	if isManual {
		if err := s.manual.UpdateFields(ctx, orderNumber, fields); err != nil {
			return storeOrNotFound(err, orderNumber)
		}
		return nil
	}

	// The external order must be known before an override can attach to it
	if _, err := s.orders.Get(ctx, orderNumber); err != nil {
		return storeOrNotFound(err, orderNumber)
	}

	if err := s.overrides.SetFields(ctx, orderNumber, fields); err != nil {
		return apperrors.NewStoreWriteError(fmt.Sprintf("failed to save override: %v", err))
	}

	return nil
}

// DeleteManualOrder removes a staff-created order
func (s *SalesService) DeleteManualOrder(ctx context.Context, orderNumber string) error {
	if orderNumber == "" {
		return apperrors.NewValidationError("missing order number")
	}

	if err := s.manual.Delete(ctx, orderNumber); err != nil {
		return storeOrNotFound(err, orderNumber)
	}

	s.logger.Info("Manual order deleted", "orderNumber", orderNumber)
	return nil
}

// SetPrintDateRange sets or clears the scheduling window for an order. The
// manual-orders collection decides which store takes the write: manual orders
// carry the range directly, external orders get an override record.
func (s *SalesService) SetPrintDateRange(ctx context.Context, orderNumber string, rng *models.PrintDateRange) error {
	if orderNumber == "" {
		return apperrors.NewValidationError("missing order number")
	}

	isManual, err := s.manual.Exists(ctx, orderNumber)
	if err != nil {
		return apperrors.NewStoreWriteError(fmt.Sprintf("failed to look up order: %v", err))
	}

	if isManual {
		err = s.manual.SetPrintDateRange(ctx, orderNumber, rng)
	} else {
		err = s.overrides.SetPrintDateRange(ctx, orderNumber, rng)
	}

	if err != nil {
		return apperrors.NewStoreWriteError(fmt.Sprintf("failed to save print date range: %v", err))
	}

	return nil
}

func storeOrNotFound(err error, orderNumber string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", orderNumber))
	}
	return apperrors.NewStoreWriteError(err.Error())
}

// ParseDate accepts the two date shapes staff submit: RFC3339 timestamps and
// bare YYYY-MM-DD days.
func ParseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
