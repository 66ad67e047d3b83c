package services

import (
	"context"
	"errors"
	"sort"

	"market/internal/apperr"
	"market/internal/events"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderItemInput is one requested line of a directly created order.
type OrderItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// CreateOrderInput creates an order without going through the cart.
// An empty ShippingAddress falls back to the user's stored address.
type CreateOrderInput struct {
	Items           []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	ShippingAddress string           `json:"shipping_address" validate:"omitempty,max=500"`
}

// DetailChange edits an existing detail when DetailID is set, otherwise it
// adds a new line for ProductID.
type DetailChange struct {
	DetailID  string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateOrderInput carries the editable parts of an order.
type UpdateOrderInput struct {
	Details         []DetailChange `json:"details"`
	ShippingAddress *string        `json:"shipping_address" validate:"omitempty,max=500"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	store  repositories.Store
	policy policy.Policy
	logger *zap.Logger
	notifier
}

// NewOrderService creates a new OrderService.
func NewOrderService(store repositories.Store, pol policy.Policy, publisher events.Publisher, logger *zap.Logger) *OrderService {
	n := newNotifier(publisher, logger)
	return &OrderService{
		store:    store,
		policy:   pol,
		logger:   n.logger,
		notifier: n,
	}
}

// List returns every order to staff and the actor's own orders otherwise.
func (s *OrderService) List(ctx context.Context, actor policy.Actor) ([]models.Order, error) {
	if actor.IsStaff() {
		return s.store.Orders().GetAll(ctx)
	}
	return s.ListMine(ctx, actor)
}

// ListMine returns the actor's own orders, newest first, whatever the role.
func (s *OrderService) ListMine(ctx context.Context, actor policy.Actor) ([]models.Order, error) {
	if actor.UserID == "" {
		return nil, apperr.Unauthorized(string(policy.OrderRead))
	}
	return s.store.Orders().ListByUser(ctx, actor.UserID)
}

// Get retrieves a single order the actor may see.
func (s *OrderService) Get(ctx context.Context, actor policy.Actor, id string) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, policy.OrderRead, orderResource(order)); err != nil {
		return nil, err
	}
	return order, nil
}

// Create places an order for the actor from an explicit item list. Lines for
// the same product are merged before stock is reserved.
func (s *OrderService) Create(ctx context.Context, actor policy.Actor, input CreateOrderInput) (*models.Order, error) {
	if err := s.policy.Authorize(actor, policy.OrderCreate, policy.Resource{Kind: "order", OwnerID: actor.UserID}); err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}

	quantities := make(map[string]int, len(input.Items))
	var productIDs []string
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, apperr.InvalidQuantity(item.Quantity)
		}
		if _, seen := quantities[item.ProductID]; !seen {
			productIDs = append(productIDs, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	// Rows are locked in product id order so concurrent orders cannot deadlock.
	sort.Strings(productIDs)

	var order *models.Order
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		user, err := tx.Users().GetByID(ctx, actor.UserID)
		if err != nil {
			return err
		}

		ledger := NewInventoryLedger(tx.Products())
		for _, id := range productIDs {
			product, err := tx.Products().GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := ledger.Check(product, quantities[id]); err != nil {
				return err
			}
		}

		address := input.ShippingAddress
		if address == "" {
			address = user.Address
		}
		order = &models.Order{
			UserID:          user.ID,
			Status:          models.OrderPending,
			Total:           decimal.Zero,
			ShippingAddress: address,
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		for _, id := range productIDs {
			detail, err := s.addDetail(ctx, tx, ledger, order.ID, id, quantities[id])
			if err != nil {
				return err
			}
			order.Details = append(order.Details, *detail)
		}
		order.Total = order.SumDetails()
		return tx.Orders().SetTotal(ctx, order.ID, order.Total)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created", zap.String("order_id", order.ID), zap.String("user_id", order.UserID))
	ev := events.New(events.OrderCreated, order.ID)
	ev.UserID = order.UserID
	ev.Status = order.Status.String()
	ev.Total = &order.Total
	s.notify(ctx, ev)
	return order, nil
}

// UpdateDetails applies detail changes and an optional new shipping address.
// Quantity changes return the old reservation and reserve the new quantity.
// Changes naming a product that does not exist are skipped. The total is
// left as is; callers run RecalculateTotal afterwards.
func (s *OrderService) UpdateDetails(ctx context.Context, actor policy.Actor, id string, input UpdateOrderInput) (*models.Order, error) {
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		order, err := s.lockForChange(ctx, tx, actor, policy.OrderUpdate, id)
		if err != nil {
			return err
		}

		if input.ShippingAddress != nil {
			order.ShippingAddress = *input.ShippingAddress
			if err := tx.Orders().Update(ctx, order); err != nil {
				return err
			}
		}

		ledger := NewInventoryLedger(tx.Products())
		for _, change := range input.Details {
			if change.Quantity <= 0 {
				return apperr.InvalidQuantity(change.Quantity)
			}
			if change.DetailID == "" {
				if change.ProductID == "" {
					continue
				}
				if _, err := s.addDetail(ctx, tx, ledger, order.ID, change.ProductID, change.Quantity); err != nil {
					if isNotFound(err, "product") {
						continue
					}
					return err
				}
				continue
			}

			detail := findDetail(order, change.DetailID)
			if detail == nil {
				return apperr.NotFound("order detail", change.DetailID)
			}
			if change.ProductID != "" && change.ProductID != detail.ProductID {
				return apperr.Validation("detail %s belongs to product %s", detail.ID, detail.ProductID)
			}
			if change.Quantity == detail.Quantity {
				continue
			}
			if err := ledger.Release(ctx, detail.ProductID, detail.Quantity); err != nil {
				if isNotFound(err, "product") {
					continue
				}
				return err
			}
			if _, err := ledger.Reserve(ctx, detail.ProductID, change.Quantity); err != nil {
				return err
			}
			detail.Reprice(change.Quantity)
			if err := tx.Orders().UpdateDetail(ctx, detail); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, events.New(events.OrderUpdated, id))
	return s.store.Orders().GetByID(ctx, id)
}

// RemoveDetail returns the detail's stock, deletes it and recalculates the total.
func (s *OrderService) RemoveDetail(ctx context.Context, actor policy.Actor, orderID, detailID string) (*models.Order, error) {
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		order, err := s.lockForChange(ctx, tx, actor, policy.OrderUpdate, orderID)
		if err != nil {
			return err
		}
		detail := findDetail(order, detailID)
		if detail == nil {
			return apperr.NotFound("order detail", detailID)
		}
		if err := NewInventoryLedger(tx.Products()).Release(ctx, detail.ProductID, detail.Quantity); err != nil {
			return err
		}
		if err := tx.Orders().DeleteDetail(ctx, detail.ID); err != nil {
			return err
		}
		return s.recalculate(ctx, tx, order.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, events.New(events.OrderUpdated, orderID))
	return s.store.Orders().GetByID(ctx, orderID)
}

// RecalculateTotal sets the total to the sum of the current detail subtotals.
func (s *OrderService) RecalculateTotal(ctx context.Context, actor policy.Actor, id string) (*models.Order, error) {
	var order *models.Order
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.OrderUpdate, orderResource(order)); err != nil {
			return err
		}
		order.Total = order.SumDetails()
		return tx.Orders().SetTotal(ctx, order.ID, order.Total)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel moves a pending or processing order to cancelled. Reserved stock is
// returned and open payments are failed in the same transaction. An order
// with a completed payment cannot be cancelled.
func (s *OrderService) Cancel(ctx context.Context, actor policy.Actor, id string) (*models.Order, error) {
	var order *models.Order
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.OrderCancel, orderResource(order)); err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return apperr.OrderLocked(order.Status.String())
		}
		if !order.Status.Cancellable() {
			return apperr.InvalidStateTransition("order", order.Status.String(), models.OrderCancelled.String())
		}
		// A paid order stays paid; it can only leave through ForceDelete.
		paid, err := tx.Payments().GetAll(ctx, models.PaymentFilter{OrderID: order.ID, Status: models.PaymentCompleted})
		if err != nil {
			return err
		}
		if len(paid) > 0 {
			return apperr.InvalidStateTransition("order", order.Status.String(), models.OrderCancelled.String())
		}

		if err := failOpenPayments(ctx, tx, order.ID); err != nil {
			return err
		}
		ledger := NewInventoryLedger(tx.Products())
		for _, d := range order.Details {
			if err := ledger.Release(ctx, d.ProductID, d.Quantity); err != nil {
				return err
			}
		}
		order.Status = models.OrderCancelled
		return tx.Orders().UpdateStatus(ctx, order.ID, order.Status)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled", zap.String("order_id", order.ID), zap.String("by", actor.UserID))
	ev := events.New(events.OrderCancelled, order.ID)
	ev.UserID = order.UserID
	ev.Status = order.Status.String()
	s.notify(ctx, ev)
	return order, nil
}

// UpdateStatus is the staff override for moving an order along its state
// machine. Cancelling goes through Cancel so that stock is returned. Moves
// into or out of in_review are left to the payment flow.
func (s *OrderService) UpdateStatus(ctx context.Context, actor policy.Actor, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid order status: %s", status)
	}
	if status == models.OrderCancelled {
		return s.Cancel(ctx, actor, id)
	}

	var order *models.Order
	var from models.OrderStatus
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.OrderSetStatus, orderResource(order)); err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return apperr.OrderLocked(order.Status.String())
		}
		// in_review mirrors an open payment under review and is only
		// entered or left through the payment flow.
		if !order.Status.CanTransitionTo(status) || order.Status == models.OrderInReview || status == models.OrderInReview {
			return apperr.InvalidStateTransition("order", order.Status.String(), status.String())
		}
		from = order.Status
		order.Status = status
		return tx.Orders().UpdateStatus(ctx, order.ID, status)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", from.String()),
		zap.String("to", status.String()))
	ev := events.New(events.OrderStatusChanged, order.ID)
	ev.Status = status.String()
	s.notify(ctx, ev)
	return order, nil
}

// ForceDelete irreversibly removes an order. Open payments are failed, stock
// is restored unless the order was already cancelled, then payments,
// shipments, details and the order itself are deleted.
func (s *OrderService) ForceDelete(ctx context.Context, actor policy.Actor, id string) error {
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.OrderForceDelete, orderResource(order)); err != nil {
			return err
		}

		if err := failOpenPayments(ctx, tx, order.ID); err != nil {
			return err
		}
		if order.Status != models.OrderCancelled {
			ledger := NewInventoryLedger(tx.Products())
			for _, d := range order.Details {
				if err := ledger.Release(ctx, d.ProductID, d.Quantity); err != nil {
					return err
				}
			}
		}
		if err := tx.Payments().DeleteByOrder(ctx, order.ID); err != nil {
			return err
		}
		if err := tx.Shipments().DeleteByOrder(ctx, order.ID); err != nil {
			return err
		}
		return tx.Orders().Delete(ctx, order.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Warn("order force-deleted", zap.String("order_id", id), zap.String("by", actor.UserID))
	s.notify(ctx, events.New(events.OrderDeleted, id))
	return nil
}

// lockForChange locks an order for detail edits and rejects terminal orders.
func (s *OrderService) lockForChange(ctx context.Context, tx repositories.Store, actor policy.Actor, action policy.Action, id string) (*models.Order, error) {
	order, err := tx.Orders().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, action, orderResource(order)); err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, apperr.OrderLocked(order.Status.String())
	}
	return order, nil
}

func (s *OrderService) addDetail(ctx context.Context, tx repositories.Store, ledger *InventoryLedger, orderID, productID string, qty int) (*models.OrderDetail, error) {
	product, err := ledger.Reserve(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	detail := &models.OrderDetail{
		OrderID:   orderID,
		ProductID: product.ID,
		UnitPrice: product.FinalPrice(),
	}
	detail.Reprice(qty)
	if err := tx.Orders().CreateDetail(ctx, detail); err != nil {
		return nil, err
	}
	detail.Product = product
	return detail, nil
}

func (s *OrderService) recalculate(ctx context.Context, tx repositories.Store, orderID string) error {
	order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	return tx.Orders().SetTotal(ctx, orderID, order.SumDetails())
}

// failOpenPayments marks every pending or in-review payment of an order as failed.
func failOpenPayments(ctx context.Context, tx repositories.Store, orderID string) error {
	open, err := tx.Payments().ListOpen(ctx, orderID)
	if err != nil {
		return err
	}
	for i := range open {
		open[i].Status = models.PaymentFailed
		if err := tx.Payments().Update(ctx, &open[i]); err != nil {
			return err
		}
	}
	return nil
}

func orderResource(order *models.Order) policy.Resource {
	return policy.Resource{Kind: "order", ID: order.ID, OwnerID: order.UserID}
}

func findDetail(order *models.Order, detailID string) *models.OrderDetail {
	for i := range order.Details {
		if order.Details[i].ID == detailID {
			return &order.Details[i]
		}
	}
	return nil
}

// isNotFound reports whether err is a NotFound for the given entity.
func isNotFound(err error, entity string) bool {
	var e *apperr.Error
	return errors.As(err, &e) && e.Kind == apperr.KindNotFound && e.Entity == entity
}
