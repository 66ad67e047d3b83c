package services

import (
	"context"
	"time"

	"market/internal/apperr"
	"market/internal/events"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/repositories"

	"go.uber.org/zap"
)

// CreateShipmentInput describes a shipment. An empty Address falls back to
// the order's shipping address and an empty Status to pending.
type CreateShipmentInput struct {
	OrderID           string                `json:"order_id" validate:"required"`
	Address           string                `json:"address" validate:"omitempty,max=500"`
	Carrier           string                `json:"carrier" validate:"omitempty,max=100"`
	TrackingNumber    string                `json:"tracking_number" validate:"omitempty,max=100"`
	Status            models.ShipmentStatus `json:"status" validate:"omitempty,oneof=pending preparing in_transit delivered"`
	EstimatedDelivery *time.Time            `json:"estimated_delivery"`
}

// ShipmentService tracks deliveries and pushes their progress onto orders.
type ShipmentService struct {
	store  repositories.Store
	policy policy.Policy
	logger *zap.Logger
	notifier
}

// NewShipmentService creates a new ShipmentService.
func NewShipmentService(store repositories.Store, pol policy.Policy, publisher events.Publisher, logger *zap.Logger) *ShipmentService {
	n := newNotifier(publisher, logger)
	return &ShipmentService{
		store:    store,
		policy:   pol,
		logger:   n.logger,
		notifier: n,
	}
}

// List returns every shipment to staff and the actor's own otherwise.
func (s *ShipmentService) List(ctx context.Context, actor policy.Actor) ([]models.Shipment, error) {
	if actor.UserID == "" {
		return nil, apperr.Unauthorized(string(policy.ShipmentRead))
	}
	userID := actor.UserID
	if actor.IsStaff() {
		userID = ""
	}
	return s.store.Shipments().GetAll(ctx, userID)
}

// Tracking returns the customer-facing view of a shipment.
func (s *ShipmentService) Tracking(ctx context.Context, actor policy.Actor, id string) (*models.Tracking, error) {
	shipment, err := s.store.Shipments().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := s.store.Orders().GetByID(ctx, shipment.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, policy.ShipmentRead, orderResource(order)); err != nil {
		return nil, err
	}
	tracking := shipment.Tracking()
	return &tracking, nil
}

// Create opens a shipment for an order that is pending or on its way.
// A pending order moves to processing.
func (s *ShipmentService) Create(ctx context.Context, actor policy.Actor, input CreateShipmentInput) (*models.Shipment, error) {
	status := input.Status
	if status == "" {
		status = models.ShipmentPending
	}
	if !status.Valid() {
		return nil, apperr.Validation("invalid shipment status: %s", status)
	}

	var (
		shipment *models.Shipment
		steps    []models.OrderStatus
	)
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.ShipmentCreate, orderResource(order)); err != nil {
			return err
		}
		if !shippable(order.Status) {
			if order.Status == models.OrderCancelled {
				return apperr.OrderLocked(order.Status.String())
			}
			return apperr.InvalidStateTransition("order", order.Status.String(), models.OrderProcessing.String())
		}

		target := status.OrderStatus()
		if target == models.OrderPending {
			target = models.OrderProcessing
		}
		steps, _ = order.Status.FulfilmentPath(target)

		address := input.Address
		if address == "" {
			address = order.ShippingAddress
		}
		shipment = &models.Shipment{
			OrderID:           order.ID,
			Address:           address,
			Carrier:           input.Carrier,
			TrackingNumber:    input.TrackingNumber,
			Status:            status,
			ShippedAt:         time.Now().UTC(),
			EstimatedDelivery: input.EstimatedDelivery,
		}
		if err := tx.Shipments().Create(ctx, shipment); err != nil {
			return err
		}
		if len(steps) > 0 {
			return tx.Orders().UpdateStatus(ctx, order.ID, steps[len(steps)-1])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shipment created", zap.String("shipment_id", shipment.ID), zap.String("order_id", shipment.OrderID))
	ev := events.New(events.ShipmentCreated, shipment.OrderID)
	ev.EntityID = shipment.ID
	ev.Status = shipment.Status.String()
	s.notify(ctx, ev)
	s.notifyOrderSteps(ctx, shipment.OrderID, steps)
	return shipment, nil
}

// UpdateStatus moves a shipment forward. The order follows along
// pending -> processing -> shipped -> delivered and never moves back.
func (s *ShipmentService) UpdateStatus(ctx context.Context, actor policy.Actor, id string, status models.ShipmentStatus) (*models.Shipment, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid shipment status: %s", status)
	}

	var (
		shipment *models.Shipment
		steps    []models.OrderStatus
	)
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		current, err := tx.Shipments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		order, err := tx.Orders().GetByIDForUpdate(ctx, current.OrderID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.ShipmentUpdateStatus, orderResource(order)); err != nil {
			return err
		}
		shipment, err = tx.Shipments().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !shipment.Status.CanTransitionTo(status) {
			return apperr.InvalidStateTransition("shipment", shipment.Status.String(), status.String())
		}
		if order.Status == models.OrderCancelled {
			return apperr.OrderLocked(order.Status.String())
		}

		var ok bool
		steps, ok = order.Status.FulfilmentPath(status.OrderStatus())
		if !ok {
			return apperr.InvalidStateTransition("order", order.Status.String(), status.OrderStatus().String())
		}

		shipment.Status = status
		if err := tx.Shipments().UpdateStatus(ctx, shipment.ID, status); err != nil {
			return err
		}
		if len(steps) > 0 {
			return tx.Orders().UpdateStatus(ctx, order.ID, steps[len(steps)-1])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shipment status changed",
		zap.String("shipment_id", shipment.ID),
		zap.String("order_id", shipment.OrderID),
		zap.String("status", status.String()))
	ev := events.New(events.ShipmentStatusChanged, shipment.OrderID)
	ev.EntityID = shipment.ID
	ev.Status = status.String()
	s.notify(ctx, ev)
	s.notifyOrderSteps(ctx, shipment.OrderID, steps)
	return shipment, nil
}

func (s *ShipmentService) notifyOrderSteps(ctx context.Context, orderID string, steps []models.OrderStatus) {
	if len(steps) == 0 {
		return
	}
	ev := events.New(events.OrderStatusChanged, orderID)
	ev.Status = steps[len(steps)-1].String()
	s.notify(ctx, ev)
}

func shippable(status models.OrderStatus) bool {
	for _, st := range models.ShippableOrderStatuses {
		if st == status {
			return true
		}
	}
	return false
}
