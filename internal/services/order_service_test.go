package services_test

import (
	"context"
	"sort"
	"testing"

	"market/internal/apperr"
	"market/internal/events"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/repositories"
	"market/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newOrderService(store repositories.Store, pub events.Publisher) *services.OrderService {
	return services.NewOrderService(store, policy.NewRoleBased(), pub, zap.NewNop())
}

func placeOrder(t *testing.T, svc *services.OrderService, actor policy.Actor, items ...services.OrderItemInput) *models.Order {
	t.Helper()
	order, err := svc.Create(context.Background(), actor, services.CreateOrderInput{Items: items})
	require.NoError(t, err)
	return order
}

func TestOrderService_CreateReservesAndMergesLines(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	product := createProduct(t, store, "Desk", 200, 5)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, eventOfType(events.OrderCreated)).Return(nil).Once()
	svc := newOrderService(store, pub)

	order := placeOrder(t, svc, customer,
		services.OrderItemInput{ProductID: product.ID, Quantity: 1},
		services.OrderItemInput{ProductID: product.ID, Quantity: 2},
	)
	require.Len(t, order.Details, 1)
	assert.Equal(t, 3, order.Details[0].Quantity)
	decimalEqual(t, 600, order.Total)
	assert.Equal(t, 3, reload(t, store, product.ID).Sold)

	_, err := svc.Create(ctx, customer, services.CreateOrderInput{Items: []services.OrderItemInput{{ProductID: product.ID, Quantity: 3}}})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	_, err = svc.Create(ctx, customer, services.CreateOrderInput{Items: []services.OrderItemInput{{ProductID: product.ID, Quantity: 0}}})
	assert.ErrorIs(t, err, apperr.ErrInvalidQuantity)

	_, err = svc.Create(ctx, customer, services.CreateOrderInput{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	pub.AssertExpectations(t)
}

func TestOrderService_VisibilityByRole(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, models.RoleCustomer)
	bob := createUser(t, store, models.RoleCustomer)
	admin := createUser(t, store, models.RoleAdmin)
	product := createProduct(t, store, "Rug", 50, 10)
	svc := newOrderService(store, events.NopPublisher{})

	aliceOrder := placeOrder(t, svc, alice, services.OrderItemInput{ProductID: product.ID, Quantity: 1})
	placeOrder(t, svc, bob, services.OrderItemInput{ProductID: product.ID, Quantity: 1})

	orders, err := svc.List(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	orders, err = svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	mine, err := svc.ListMine(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, mine)

	_, err = svc.Get(ctx, bob, aliceOrder.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	got, err := svc.Get(ctx, admin, aliceOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, aliceOrder.ID, got.ID)
}

func TestOrderService_UpdateDetails(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	shelf := createProduct(t, store, "Shelf", 30, 5)
	vase := createProduct(t, store, "Vase", 12, 3)
	svc := newOrderService(store, events.NopPublisher{})

	order := placeOrder(t, svc, customer, services.OrderItemInput{ProductID: shelf.ID, Quantity: 2})
	detailID := order.Details[0].ID
	address := "2 Harbour Road"

	updated, err := svc.UpdateDetails(ctx, customer, order.ID, services.UpdateOrderInput{
		ShippingAddress: &address,
		Details: []services.DetailChange{
			{DetailID: detailID, Quantity: 5},
			{ProductID: vase.ID, Quantity: 1},
			{ProductID: "no-such-product", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, address, updated.ShippingAddress)
	require.Len(t, updated.Details, 2)
	assert.Equal(t, 5, reload(t, store, shelf.ID).Sold)
	assert.Equal(t, 1, reload(t, store, vase.ID).Sold)
	decimalEqual(t, 60, updated.Total)

	_, err = svc.UpdateDetails(ctx, customer, order.ID, services.UpdateOrderInput{
		Details: []services.DetailChange{{DetailID: detailID, Quantity: 6}},
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 5, reload(t, store, shelf.ID).Sold, "failed change keeps the previous reservation")

	recalculated, err := svc.RecalculateTotal(ctx, customer, order.ID)
	require.NoError(t, err)
	decimalEqual(t, 162, recalculated.Total)
}

func TestOrderService_UpdateDetailsSkipsDeletedProducts(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	kept := createProduct(t, store, "Mug", 9, 10)
	gone := createProduct(t, store, "Teapot", 25, 10)
	svc := newOrderService(store, events.NopPublisher{})

	order := placeOrder(t, svc, customer,
		services.OrderItemInput{ProductID: kept.ID, Quantity: 1},
		services.OrderItemInput{ProductID: gone.ID, Quantity: 1},
	)
	details := map[string]string{}
	for _, d := range order.Details {
		details[d.ProductID] = d.ID
	}
	require.NoError(t, db.Exec("DELETE FROM products WHERE id = ?", gone.ID).Error)

	updated, err := svc.UpdateDetails(ctx, customer, order.ID, services.UpdateOrderInput{
		Details: []services.DetailChange{
			{DetailID: details[gone.ID], Quantity: 3},
			{DetailID: details[kept.ID], Quantity: 2},
		},
	})
	require.NoError(t, err)
	for _, d := range updated.Details {
		if d.ID == details[gone.ID] {
			assert.Equal(t, 1, d.Quantity, "detail of a deleted product is left as is")
		} else {
			assert.Equal(t, 2, d.Quantity)
		}
	}
	assert.Equal(t, 2, reload(t, store, kept.ID).Sold)
}

func TestOrderService_CreateLocksProductsInIDOrder(t *testing.T) {
	base, _ := newTestStore(t)
	customer := createUser(t, base, models.RoleCustomer)
	a := createProduct(t, base, "Pen", 2, 10)
	b := createProduct(t, base, "Ink", 4, 10)
	c := createProduct(t, base, "Nib", 3, 10)

	recorder := &lockRecorder{}
	svc := newOrderService(&recordingStore{Store: base, rec: recorder}, events.NopPublisher{})
	placeOrder(t, svc, customer,
		services.OrderItemInput{ProductID: c.ID, Quantity: 1},
		services.OrderItemInput{ProductID: a.ID, Quantity: 1},
		services.OrderItemInput{ProductID: b.ID, Quantity: 1},
	)

	assert.Len(t, recorder.locked, 3)
	assert.True(t, sort.StringsAreSorted(recorder.locked), "locked %v", recorder.locked)
}

func TestOrderService_RemoveDetailReturnsStock(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	a := createProduct(t, store, "Plate", 8, 10)
	b := createProduct(t, store, "Bowl", 6, 10)
	svc := newOrderService(store, events.NopPublisher{})

	order := placeOrder(t, svc, customer,
		services.OrderItemInput{ProductID: a.ID, Quantity: 2},
		services.OrderItemInput{ProductID: b.ID, Quantity: 4},
	)
	var bowlDetail string
	for _, d := range order.Details {
		if d.ProductID == b.ID {
			bowlDetail = d.ID
		}
	}

	updated, err := svc.RemoveDetail(ctx, customer, order.ID, bowlDetail)
	require.NoError(t, err)
	assert.Len(t, updated.Details, 1)
	decimalEqual(t, 16, updated.Total)
	assert.Equal(t, 0, reload(t, store, b.ID).Sold)

	_, err = svc.RemoveDetail(ctx, customer, order.ID, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOrderService_CancelRestoresStockAndFailsOpenPayments(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	product := createProduct(t, store, "Sofa", 900, 2)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	svc := newOrderService(store, pub)
	payments := services.NewPaymentService(store, policy.NewRoleBased(), pub, zap.NewNop())

	order := placeOrder(t, svc, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 2})
	payment, err := payments.Create(ctx, customer, services.CreatePaymentInput{OrderID: order.ID, Method: models.MethodCash})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.Equal(t, 0, reload(t, store, product.ID).Sold)

	p, err := store.Payments().GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, p.Status)

	_, err = svc.Cancel(ctx, customer, order.ID)
	assert.ErrorIs(t, err, apperr.ErrOrderLocked)
	got, err := svc.Get(ctx, customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, 0, reload(t, store, product.ID).Sold, "a second cancel returns nothing twice")

	_, err = svc.UpdateDetails(ctx, customer, order.ID, services.UpdateOrderInput{})
	assert.ErrorIs(t, err, apperr.ErrOrderLocked)
	pub.AssertCalled(t, "Publish", mock.Anything, eventOfType(events.OrderCancelled))
}

func TestOrderService_CancelRejectsPaidOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	admin := createUser(t, store, models.RoleAdmin)
	product := createProduct(t, store, "Piano", 1500, 2)
	svc := newOrderService(store, events.NopPublisher{})
	payments := services.NewPaymentService(store, policy.NewRoleBased(), events.NopPublisher{}, zap.NewNop())

	order := placeOrder(t, svc, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 1})
	payment, err := payments.Create(ctx, customer, services.CreatePaymentInput{OrderID: order.ID, Method: models.MethodCash})
	require.NoError(t, err)
	_, err = payments.Complete(ctx, admin, payment.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, customer, order.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	_, err = svc.UpdateStatus(ctx, admin, order.ID, models.OrderCancelled)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	got, err := svc.Get(ctx, customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, got.Status)
	p, err := store.Payments().GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, p.Status)
	assert.Equal(t, 1, reload(t, store, product.ID).Sold, "stock stays with the paid order")
}

func TestOrderService_UpdateStatusLeavesReviewToPayments(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	admin := createUser(t, store, models.RoleAdmin)
	product := createProduct(t, store, "Easel", 60, 5)
	svc := newOrderService(store, events.NopPublisher{})
	payments := services.NewPaymentService(store, policy.NewRoleBased(), events.NopPublisher{}, zap.NewNop())

	pending := placeOrder(t, svc, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 1})
	_, err := svc.UpdateStatus(ctx, admin, pending.ID, models.OrderInReview)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	reviewed := placeOrder(t, svc, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 1})
	payment, err := payments.Create(ctx, customer, services.CreatePaymentInput{
		OrderID:  reviewed.ID,
		Method:   models.MethodBankTransfer,
		ProofURL: "https://example.com/receipt.png",
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentInReview, payment.Status)

	_, err = svc.UpdateStatus(ctx, admin, reviewed.ID, models.OrderPending)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	got, err := svc.Get(ctx, admin, reviewed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderInReview, got.Status)

	moved, err := svc.UpdateStatus(ctx, admin, pending.ID, models.OrderProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, moved.Status)
}

func TestOrderService_CancelRejectsInReviewAndShipped(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	admin := createUser(t, store, models.RoleAdmin)
	product := createProduct(t, store, "Lamp", 20, 10)
	svc := newOrderService(store, events.NopPublisher{})

	payments := services.NewPaymentService(store, policy.NewRoleBased(), events.NopPublisher{}, zap.NewNop())

	order := placeOrder(t, svc, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 1})
	_, err := payments.Create(ctx, customer, services.CreatePaymentInput{
		OrderID:  order.ID,
		Method:   models.MethodBankTransfer,
		ProofURL: "https://example.com/receipt.png",
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, customer, order.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	_, err = svc.UpdateStatus(ctx, customer, order.ID, models.OrderProcessing)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.UpdateStatus(ctx, admin, order.ID, models.OrderDelivered)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	_, err = svc.UpdateStatus(ctx, admin, order.ID, models.OrderStatus("paid"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestOrderService_ForceDelete(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	admin := createUser(t, store, models.RoleAdmin)
	product := createProduct(t, store, "Bike", 400, 3)
	svc := newOrderService(store, events.NopPublisher{})
	payments := services.NewPaymentService(store, policy.NewRoleBased(), events.NopPublisher{}, zap.NewNop())

	live := placeOrder(t, svc, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 2})
	_, err := payments.Create(ctx, customer, services.CreatePaymentInput{OrderID: live.ID, Method: models.MethodWallet})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ForceDelete(ctx, customer, live.ID), apperr.ErrUnauthorized)

	require.NoError(t, svc.ForceDelete(ctx, admin, live.ID))
	assert.Equal(t, 0, reload(t, store, product.ID).Sold)
	assert.Equal(t, int64(0), countRows(t, db, &models.Order{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.OrderDetail{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.Payment{}))

	cancelled := placeOrder(t, svc, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 1})
	_, err = svc.Cancel(ctx, customer, cancelled.ID)
	require.NoError(t, err)
	require.NoError(t, svc.ForceDelete(ctx, admin, cancelled.ID))
	fresh := reload(t, store, product.ID)
	assert.Equal(t, 0, fresh.Sold)
	assert.Equal(t, 3, fresh.Stock, "stock of a cancelled order is not returned twice")

	assert.ErrorIs(t, svc.ForceDelete(ctx, admin, cancelled.ID), apperr.ErrNotFound)
}

func TestOrderService_RecalculateTotalUsesFrozenPrices(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	customer := createUser(t, store, models.RoleCustomer)
	product := createProduct(t, store, "Clock", 10, 10)
	svc := newOrderService(store, events.NopPublisher{})

	order := placeOrder(t, svc, customer, services.OrderItemInput{ProductID: product.ID, Quantity: 3})
	product.Price = decimal.NewFromInt(99)
	require.NoError(t, store.Products().Update(ctx, product))

	recalculated, err := svc.RecalculateTotal(ctx, customer, order.ID)
	require.NoError(t, err)
	decimalEqual(t, 30, recalculated.Total)
}
