package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys of the domain events published after a transaction commits.
const (
	OrderCreated          = "order.created"
	OrderUpdated          = "order.updated"
	OrderCancelled        = "order.cancelled"
	OrderDeleted          = "order.deleted"
	OrderStatusChanged    = "order.status_changed"
	PaymentCreated        = "payment.created"
	PaymentStatusChanged  = "payment.status_changed"
	ShipmentCreated       = "shipment.created"
	ShipmentStatusChanged = "shipment.status_changed"
)

// Event is the JSON body of every domain event.
type Event struct {
	Type       string           `json:"type"`
	OrderID    string           `json:"order_id"`
	EntityID   string           `json:"entity_id,omitempty"`
	UserID     string           `json:"user_id,omitempty"`
	Status     string           `json:"status,omitempty"`
	Total      *decimal.Decimal `json:"total,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// New stamps an event with the current time.
func New(eventType, orderID string) Event {
	return Event{Type: eventType, OrderID: orderID, OccurredAt: time.Now().UTC()}
}

// Publisher delivers events to whoever listens. Implementations must be safe
// for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. It is used when messaging is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
