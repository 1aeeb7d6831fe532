// Package presentation turns the merged order list into display-ready
// records for the dashboard table and calendar.
package presentation

import (
	"strings"

	"github.com/printops/order-sync-api/internal/models"
)

// Group labels. The VIP customer groups by day so their batched orders
// collapse into one expandable row; everything else gets a unique key so the
// table does not group it.
const (
	vipGroupLabel      = "Murdochs"
	printavoGroupLabel = "Printavo"
	noGroupPrefix      = "NoGroup-"
)

// DisplayRecord is an order augmented with its derived grouping key
type DisplayRecord struct {
	*models.Order
	Group string `json:"group"`
}

// Decorator derives display fields from the merged order list
type Decorator struct {
	vipMatch string
}

// NewDecorator creates a decorator matching VIP customers by substring
func NewDecorator(vipMatch string) *Decorator {
	return &Decorator{vipMatch: vipMatch}
}

// Decorate adds the group key to every order. The derivation is pure: it
// depends only on order number, customer, and order date.
func (d *Decorator) Decorate(orders []*models.Order) []DisplayRecord {
	records := make([]DisplayRecord, 0, len(orders))

	for _, order := range orders {
		records = append(records, DisplayRecord{
			Order: order,
			Group: d.GroupKey(order),
		})
	}

	return records
}

// GroupKey computes the grouping key for one order
func (d *Decorator) GroupKey(order *models.Order) string {
	if d.vipMatch != "" && strings.Contains(order.Customer, d.vipMatch) {
		day := "Unknown Date"
		if !order.OrderDate.IsZero() {
			day = order.OrderDate.UTC().Format("2006-01-02")
		}
		return vipGroupLabel + " - " + day
	}

	if models.OrderOrigin(order.OrderNumber) == models.OriginPrintavo {
		return printavoGroupLabel
	}

	return noGroupPrefix + order.OrderNumber
}
