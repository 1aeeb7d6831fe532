package models

import (
	"encoding/json"
	"time"
)

// Change event types published to Kafka by the sync cycle
const (
	EventOrderDiscovered  = "order_discovered"
	EventOrderDeactivated = "order_deactivated"
)

// OrderEvent is the payload published when an order's lifecycle changes
type OrderEvent struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	OrderNumber string    `json:"order_number"`
	Origin      Origin    `json:"origin"`
	Status      string    `json:"status,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewOrderDiscoveredEvent builds the event for an order seen for the first time
func NewOrderDiscoveredEvent(order *Order) *OrderEvent {
	return &OrderEvent{
		EventType:   EventOrderDiscovered,
		EventID:     GenerateID("evt"),
		OrderNumber: order.OrderNumber,
		Origin:      OrderOrigin(order.OrderNumber),
		Status:      order.Status,
		OccurredAt:  GetCurrentTime(),
	}
}

// NewOrderDeactivatedEvent builds the event for an order that vanished upstream
func NewOrderDeactivatedEvent(orderNumber string) *OrderEvent {
	return &OrderEvent{
		EventType:   EventOrderDeactivated,
		EventID:     GenerateID("evt"),
		OrderNumber: orderNumber,
		Origin:      OrderOrigin(orderNumber),
		OccurredAt:  GetCurrentTime(),
	}
}

// Marshal serializes the event for publishing
func (e *OrderEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
