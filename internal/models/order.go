package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderInReview   OrderStatus = "in_review"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderInReview, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderInReview, OrderCancelled},
	OrderInReview:   {OrderProcessing, OrderPending},
	OrderShipped:    {OrderDelivered},
}

// fulfilmentRank orders the statuses a shipment can push an order through.
var fulfilmentRank = map[OrderStatus]int{
	OrderPending:    0,
	OrderProcessing: 1,
	OrderShipped:    2,
	OrderDelivered:  3,
}

func (s OrderStatus) String() string { return string(s) }

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderInReview, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further status or detail change is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransitionTo reports whether the order state machine has an edge s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether a customer-facing cancel is allowed.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderProcessing
}

// FulfilmentPath returns the forward steps from s up to target along
// pending -> processing -> shipped -> delivered. ok is false when s is not on
// that path (in review, cancelled). An empty slice means s is already at or
// past target.
func (s OrderStatus) FulfilmentPath(target OrderStatus) (steps []OrderStatus, ok bool) {
	from, onPath := fulfilmentRank[s]
	to, targetOnPath := fulfilmentRank[target]
	if !onPath || !targetOnPath {
		return nil, false
	}
	path := []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered}
	for r := from + 1; r <= to; r++ {
		steps = append(steps, path[r])
	}
	return steps, true
}

// Order represents a customer order.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID          string          `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	Total           decimal.Decimal `json:"total" gorm:"type:decimal(10,2);not null"`
	ShippingAddress string          `json:"shipping_address" gorm:"type:varchar(500)"`
	Details         []OrderDetail   `json:"details" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SumDetails is the order total derived from the current detail subtotals.
func (o *Order) SumDetails() decimal.Decimal {
	total := decimal.Zero
	for _, d := range o.Details {
		total = total.Add(d.Subtotal)
	}
	return total
}

// OrderDetail is a single line of an order. UnitPrice is frozen at creation.
type OrderDetail struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string          `json:"order_id" gorm:"type:varchar(36);not null;index"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36);not null;index"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	Subtotal  decimal.Decimal `json:"subtotal" gorm:"type:decimal(10,2);not null"`
}

// Reprice sets the quantity and recomputes the subtotal from the frozen unit price.
func (d *OrderDetail) Reprice(qty int) {
	d.Quantity = qty
	d.Subtotal = d.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
}
