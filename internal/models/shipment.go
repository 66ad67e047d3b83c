package models

import "time"

// ShipmentStatus is the lifecycle state of a shipment. It only moves forward.
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentPreparing ShipmentStatus = "preparing"
	ShipmentInTransit ShipmentStatus = "in_transit"
	ShipmentDelivered ShipmentStatus = "delivered"
)

var shipmentRank = map[ShipmentStatus]int{
	ShipmentPending:   0,
	ShipmentPreparing: 1,
	ShipmentInTransit: 2,
	ShipmentDelivered: 3,
}

func (s ShipmentStatus) String() string { return string(s) }

func (s ShipmentStatus) Valid() bool {
	_, ok := shipmentRank[s]
	return ok
}

// CanTransitionTo allows any strictly forward move.
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	from, ok := shipmentRank[s]
	if !ok {
		return false
	}
	to, ok := shipmentRank[next]
	return ok && to > from
}

// OrderStatus is the order status the shipment status corresponds to.
func (s ShipmentStatus) OrderStatus() OrderStatus {
	switch s {
	case ShipmentPreparing:
		return OrderProcessing
	case ShipmentInTransit:
		return OrderShipped
	case ShipmentDelivered:
		return OrderDelivered
	}
	return OrderPending
}

// ShippableOrderStatuses are the order statuses a shipment may be created for.
var ShippableOrderStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered}

// Shipment tracks the physical delivery of an order.
type Shipment struct {
	ID                string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID           string         `json:"order_id" gorm:"type:varchar(36);not null;index"`
	Address           string         `json:"address" gorm:"type:varchar(500)"`
	Carrier           string         `json:"carrier" gorm:"type:varchar(100)"`
	TrackingNumber    string         `json:"tracking_number" gorm:"type:varchar(100);index"`
	Status            ShipmentStatus `json:"status" gorm:"type:varchar(20);not null"`
	ShippedAt         time.Time      `json:"shipped_at"`
	EstimatedDelivery *time.Time     `json:"estimated_delivery,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Tracking is the customer-facing projection of a shipment.
type Tracking struct {
	TrackingNumber    string         `json:"tracking_number"`
	Status            ShipmentStatus `json:"status"`
	Carrier           string         `json:"carrier"`
	EstimatedDelivery *time.Time     `json:"estimated_delivery,omitempty"`
	Address           string         `json:"address"`
}

func (s *Shipment) Tracking() Tracking {
	return Tracking{
		TrackingNumber:    s.TrackingNumber,
		Status:            s.Status,
		Carrier:           s.Carrier,
		EstimatedDelivery: s.EstimatedDelivery,
		Address:           s.Address,
	}
}
