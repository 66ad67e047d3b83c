package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Broker is the part of a message client the publisher needs.
// *rabbitmq.Client satisfies it.
type Broker interface {
	PublishJSON(ctx context.Context, routingKey string, v any) error
}

// BrokerPublisher publishes each event under its Type as routing key.
type BrokerPublisher struct {
	broker Broker
}

func NewBrokerPublisher(broker Broker) *BrokerPublisher {
	return &BrokerPublisher{broker: broker}
}

func (p *BrokerPublisher) Publish(ctx context.Context, event Event) error {
	if err := p.broker.PublishJSON(ctx, event.Type, event); err != nil {
		return fmt.Errorf("publish %s for order %s: %w", event.Type, event.OrderID, err)
	}
	return nil
}

// AuditHandler decodes a delivered event body and writes it to the log.
func AuditHandler(logger *zap.Logger) func(body []byte) error {
	return func(body []byte) error {
		var e Event
		if err := json.Unmarshal(body, &e); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		logger.Info("domain event",
			zap.String("type", e.Type),
			zap.String("order_id", e.OrderID),
			zap.String("entity_id", e.EntityID),
			zap.String("status", e.Status),
			zap.Time("occurred_at", e.OccurredAt))
		return nil
	}
}
