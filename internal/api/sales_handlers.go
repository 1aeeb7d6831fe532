package api

import (
	"encoding/json"
	"net/http"

	"github.com/printops/order-sync-api/internal/docstore"
	"github.com/printops/order-sync-api/internal/models"
	"github.com/printops/order-sync-api/internal/presentation"
	"github.com/printops/order-sync-api/internal/service"
	"github.com/printops/order-sync-api/pkg/errors"
)

// SalesResponse is the shape the dashboard frontend consumes
type SalesResponse struct {
	SaleList []presentation.DisplayRecord `json:"SaleList"`
}

// getSalesHandler returns the merged sales list with display grouping.
// The list is assembled fresh on every request, so caches must not hold it.
func (s *Server) getSalesHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := s.salesService.ListSales(r.Context())

	if err != nil {
		s.logger.Error("Failed to list sales", "error", err)
		s.respondWithError(w, errors.StatusCode(err), "Failed to fetch sales")
		return
	}

	records := s.decorator.Decorate(orders)

	w.Header().Set("Cache-Control", "no-store")
	s.respondWithJSON(w, http.StatusOK, SalesResponse{SaleList: records})
}

type addOrderPayload struct {
	OrderNumber    string                 `json:"order_number"`
	Customer       string                 `json:"customer"`
	OrderDate      string                 `json:"order_date"`
	Status         string                 `json:"status"`
	TotalQuantity  *int                   `json:"total_quantity"`
	PrintDateRange *printDateRangePayload `json:"print_date_range"`
}

type printDateRangePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// addOrderHandler creates a manual order
func (s *Server) addOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload addOrderPayload

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	rng, err := parsePrintDateRange(payload.PrintDateRange)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := s.salesService.AddManualOrder(r.Context(), service.AddOrderRequest{
		OrderNumber:    payload.OrderNumber,
		Customer:       payload.Customer,
		OrderDate:      payload.OrderDate,
		Status:         payload.Status,
		TotalQuantity:  payload.TotalQuantity,
		PrintDateRange: rng,
	})

	if err != nil {
		s.respondWithError(w, errors.StatusCode(err), err.Error())
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data:    order,
	})
}

type updateOrderPayload struct {
	OrderNumber string            `json:"order_number"`
	Fields      docstore.Document `json:"fields"`
}

// updateOrderHandler applies staff edits. Manual orders are edited in place;
// external orders get an override record that wins at read time.
func (s *Server) updateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload updateOrderPayload

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if payload.OrderNumber == "" {
		s.respondWithError(w, http.StatusBadRequest, "order_number is required")
		return
	}

	if len(payload.Fields) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "fields must not be empty")
		return
	}

	if err := s.salesService.UpdateOrder(r.Context(), payload.OrderNumber, payload.Fields); err != nil {
		s.respondWithError(w, errors.StatusCode(err), err.Error())
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]string{"order_number": payload.OrderNumber},
	})
}

type deleteOrderPayload struct {
	OrderNumber string `json:"order_number"`
}

// deleteOrderHandler removes a manual order
func (s *Server) deleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload deleteOrderPayload

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if payload.OrderNumber == "" {
		s.respondWithError(w, http.StatusBadRequest, "order_number is required")
		return
	}

	if err := s.salesService.DeleteManualOrder(r.Context(), payload.OrderNumber); err != nil {
		s.respondWithError(w, errors.StatusCode(err), err.Error())
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]string{"order_number": payload.OrderNumber},
	})
}

type updatePrintDatePayload struct {
	OrderNumber    string                 `json:"order_number"`
	PrintDateRange *printDateRangePayload `json:"print_date_range"`
}

// updatePrintDateHandler assigns or clears an order's print window.
// A null print_date_range clears the assignment.
func (s *Server) updatePrintDateHandler(w http.ResponseWriter, r *http.Request) {
	var payload updatePrintDatePayload

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if payload.OrderNumber == "" {
		s.respondWithError(w, http.StatusBadRequest, "order_number is required")
		return
	}

	rng, err := parsePrintDateRange(payload.PrintDateRange)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.salesService.SetPrintDateRange(r.Context(), payload.OrderNumber, rng); err != nil {
		s.respondWithError(w, errors.StatusCode(err), err.Error())
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]string{"order_number": payload.OrderNumber},
	})
}

func parsePrintDateRange(payload *printDateRangePayload) (*models.PrintDateRange, error) {
	if payload == nil {
		return nil, nil
	}

	if payload.From == "" {
		return nil, errors.NewValidationError("print_date_range.from is required")
	}

	from, err := service.ParseDate(payload.From)

	if err != nil {
		return nil, errors.NewValidationError("print_date_range.from is not a valid date")
	}

	rng := &models.PrintDateRange{From: from}

	if payload.To != "" {
		to, err := service.ParseDate(payload.To)

		if err != nil {
			return nil, errors.NewValidationError("print_date_range.to is not a valid date")
		}
		rng.To = &to
	}

	return rng, nil
}
