package services_test

import (
	"context"
	"testing"

	"market/internal/apperr"
	"market/internal/events"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestShipmentService_DrivesOrderForward(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	admin := createUser(t, store, models.RoleOperator)
	product := createProduct(t, store, "Printer", 150, 3)
	orders := newOrderService(store, events.NopPublisher{})
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	svc := services.NewShipmentService(store, policy.NewRoleBased(), pub, zap.NewNop())

	order := placeOrder(t, orders, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 1})

	_, err := svc.Create(ctx, customer, services.CreateShipmentInput{OrderID: order.ID})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	shipment, err := svc.Create(ctx, admin, services.CreateShipmentInput{
		OrderID:        order.ID,
		Carrier:        "FastShip",
		TrackingNumber: "FS-1001",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ShipmentPending, shipment.Status)
	assert.Equal(t, order.ShippingAddress, shipment.Address)
	assert.False(t, shipment.ShippedAt.IsZero())
	assertOrderStatus(t, orders, customer, order.ID, models.OrderProcessing)

	_, err = svc.UpdateStatus(ctx, admin, shipment.ID, models.ShipmentInTransit)
	require.NoError(t, err)
	assertOrderStatus(t, orders, customer, order.ID, models.OrderShipped)

	_, err = svc.UpdateStatus(ctx, admin, shipment.ID, models.ShipmentPreparing)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition, "shipments never move back")

	_, err = svc.UpdateStatus(ctx, admin, shipment.ID, models.ShipmentDelivered)
	require.NoError(t, err)
	assertOrderStatus(t, orders, customer, order.ID, models.OrderDelivered)

	tracking, err := svc.Tracking(ctx, customer, shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, "FS-1001", tracking.TrackingNumber)
	assert.Equal(t, models.ShipmentDelivered, tracking.Status)

	pub.AssertCalled(t, "Publish", mock.Anything, eventOfType(events.ShipmentStatusChanged))
	pub.AssertCalled(t, "Publish", mock.Anything, eventOfType(events.OrderStatusChanged))
}

func TestShipmentService_RejectsUnshippableOrders(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	other := createUser(t, store, models.RoleCustomer)
	admin := createUser(t, store, models.RoleAdmin)
	product := createProduct(t, store, "Scanner", 90, 5)
	orders := newOrderService(store, events.NopPublisher{})
	svc := services.NewShipmentService(store, policy.NewRoleBased(), events.NopPublisher{}, zap.NewNop())

	cancelled := placeOrder(t, orders, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 1})
	_, err := orders.Cancel(ctx, customer, cancelled.ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, services.CreateShipmentInput{OrderID: cancelled.ID})
	assert.ErrorIs(t, err, apperr.ErrOrderLocked)

	inReview := placeOrder(t, orders, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 1})
	payments := services.NewPaymentService(store, policy.NewRoleBased(), events.NopPublisher{}, zap.NewNop())
	_, err = payments.Create(ctx, customer, services.CreatePaymentInput{
		OrderID:  inReview.ID,
		Method:   models.MethodBankTransfer,
		ProofURL: "https://example.com/receipt.png",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, services.CreateShipmentInput{OrderID: inReview.ID})
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	pending := placeOrder(t, orders, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 1})
	shipment, err := svc.Create(ctx, admin, services.CreateShipmentInput{OrderID: pending.ID, Address: "Depot 4"})
	require.NoError(t, err)
	assert.Equal(t, "Depot 4", shipment.Address)

	_, err = svc.Tracking(ctx, other, shipment.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	list, err := svc.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = svc.List(ctx, customer)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func assertOrderStatus(t *testing.T, orders *services.OrderService, actor policy.Actor, id string, want models.OrderStatus) {
	t.Helper()
	order, err := orders.Get(context.Background(), actor, id)
	require.NoError(t, err)
	assert.Equal(t, want, order.Status)
}
