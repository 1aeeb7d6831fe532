package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Namespace prefixes on order numbers. The order number is the single join
// key across all three collections, so every origin gets its own prefix to
// keep the keyspaces disjoint.
const (
	ManualPrefix   = "Manual-"
	PrintavoPrefix = "Printavo-"
)

// Origin identifies the system an order came from
type Origin string

const (
	OriginCin7     Origin = "cin7"
	OriginPrintavo Origin = "printavo"
	OriginManual   Origin = "manual"
)

// Order is the canonical materialized order record
type Order struct {
	OrderNumber      string          `json:"order_number"`
	SaleID           string          `json:"sale_id,omitempty"` // Cin7 sale GUID, needed for the detail endpoint
	Customer         string          `json:"customer"`
	OrderDate        time.Time       `json:"order_date"`
	Status           string          `json:"status"`
	InvoiceAmount    float64         `json:"invoice_amount,omitempty"`
	TotalQuantity    *int            `json:"total_quantity,omitempty"`
	PrintDateRange   *PrintDateRange `json:"print_date_range,omitempty"`
	InvoiceDate      *time.Time      `json:"invoice_date,omitempty"`
	IsManual         bool            `json:"is_manual"`
	IsActive         bool            `json:"is_active"`
	NeedsDetailFetch bool            `json:"needs_detail_fetch"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// PrintDateRange is a staff-assigned scheduling window
type PrintDateRange struct {
	From time.Time  `json:"from"`
	To   *time.Time `json:"to,omitempty"`
}

// OrderOrigin derives the origin system from an order number's namespace prefix
func OrderOrigin(orderNumber string) Origin {
	switch {
	case strings.HasPrefix(orderNumber, ManualPrefix):
		return OriginManual
	case strings.HasPrefix(orderNumber, PrintavoPrefix):
		return OriginPrintavo
	default:
		return OriginCin7
	}
}

// ToDocument converts an order into the document shape stored in the
// docstore. Timestamps become RFC3339 strings via the JSON round trip, which
// is the canonical on-the-wire representation.
func (o *Order) ToDocument() (map[string]interface{}, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// OrderFromDocument converts a stored document back into an Order
func OrderFromDocument(doc map[string]interface{}) (*Order, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}

	return &order, nil
}
