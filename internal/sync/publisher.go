package sync

import (
	"github.com/printops/order-sync-api/internal/models"
	"github.com/printops/order-sync-api/pkg/kafka"
	"github.com/printops/order-sync-api/pkg/logger"
)

// KafkaPublisher sends order lifecycle events to a Kafka topic. Publishing is
// best-effort: a broker failure is logged and otherwise ignored, since the
// materialized collection is the source of truth.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   logger.Logger
}

// NewKafkaPublisher creates a new KafkaPublisher
func NewKafkaPublisher(producer *kafka.Producer, topic string, logger logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish sends one event, keyed by order number so per-order ordering holds
func (p *KafkaPublisher) Publish(event *models.OrderEvent) {
	payload, err := event.Marshal()

	if err != nil {
		p.logger.Error("Failed to marshal order event", "error", err, "eventType", event.EventType)
		return
	}

	if err := p.producer.SendMessage(p.topic, event.OrderNumber, payload); err != nil {
		p.logger.Warn("Failed to publish order event",
			"error", err,
			"eventType", event.EventType,
			"orderNumber", event.OrderNumber)
	}
}

// NopPublisher drops every event. Used when Kafka is not configured.
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(*models.OrderEvent) {}
