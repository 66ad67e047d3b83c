package services

import (
	"context"
	"fmt"
	"sort"

	"market/internal/apperr"
	"market/internal/events"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartLine is one cart item priced at the product's current final price.
type CartLine struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartView is the customer-facing projection of a cart.
type CartView struct {
	ID        string          `json:"id"`
	Items     []CartLine      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func newCartView(cart *models.Cart) *CartView {
	view := &CartView{
		ID:        cart.ID,
		Items:     make([]CartLine, 0, len(cart.Items)),
		Total:     cart.Total(),
		ItemCount: cart.ItemCount(),
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		line := CartLine{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal(),
		}
		if item.Product != nil {
			line.Name = item.Product.Name
			line.UnitPrice = item.Product.FinalPrice()
		}
		view.Items = append(view.Items, line)
	}
	return view
}

// CartService handles the shopping cart and its conversion into an order.
type CartService struct {
	store  repositories.Store
	policy policy.Policy
	logger *zap.Logger
	notifier
}

// NewCartService creates a new CartService.
func NewCartService(store repositories.Store, pol policy.Policy, publisher events.Publisher, logger *zap.Logger) *CartService {
	n := newNotifier(publisher, logger)
	return &CartService{
		store:    store,
		policy:   pol,
		logger:   n.logger,
		notifier: n,
	}
}

// GetCart returns the actor's cart, creating it on first access.
func (s *CartService) GetCart(ctx context.Context, actor policy.Actor) (*CartView, error) {
	if err := s.policy.Authorize(actor, policy.CartUse, policy.Resource{Kind: "cart", OwnerID: actor.UserID}); err != nil {
		return nil, err
	}
	cart, err := s.store.Carts().GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return newCartView(cart), nil
}

// AddItem adds qty units of a product, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, actor policy.Actor, productID string, qty int) (*CartView, error) {
	if err := s.policy.Authorize(actor, policy.CartUse, policy.Resource{Kind: "cart", OwnerID: actor.UserID}); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, apperr.InvalidQuantity(qty)
	}

	var view *CartView
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		cart, err := tx.Carts().GetOrCreate(ctx, actor.UserID)
		if err != nil {
			return err
		}
		product, err := tx.Products().GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if product.Disabled {
			return apperr.NotFound("product", productID)
		}
		existing, err := tx.Carts().FindItem(ctx, cart.ID, productID)
		if err != nil {
			return err
		}

		merged := qty
		if existing != nil {
			merged += existing.Quantity
		}
		if err := NewInventoryLedger(tx.Products()).Check(product, merged); err != nil {
			return err
		}

		if existing != nil {
			err = tx.Carts().UpdateItemQuantity(ctx, existing.ID, merged)
		} else {
			err = tx.Carts().CreateItem(ctx, &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: qty})
		}
		if err != nil {
			return err
		}

		cart, err = tx.Carts().GetOrCreate(ctx, actor.UserID)
		if err != nil {
			return err
		}
		view = newCartView(cart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SetItemQuantity overwrites the quantity of a line. A quantity of zero or
// less removes the line.
func (s *CartService) SetItemQuantity(ctx context.Context, actor policy.Actor, itemID string, qty int) (*CartView, error) {
	var view *CartView
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		cart, item, err := s.ownedItem(ctx, tx, actor, itemID)
		if err != nil {
			return err
		}

		if qty <= 0 {
			err = tx.Carts().DeleteItem(ctx, item.ID)
		} else {
			if item.Product == nil {
				return apperr.NotFound("product", item.ProductID)
			}
			if err := NewInventoryLedger(tx.Products()).Check(item.Product, qty); err != nil {
				return err
			}
			err = tx.Carts().UpdateItemQuantity(ctx, item.ID, qty)
		}
		if err != nil {
			return err
		}

		cart, err = tx.Carts().GetOrCreate(ctx, cart.UserID)
		if err != nil {
			return err
		}
		view = newCartView(cart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveItem deletes a line from the actor's cart.
func (s *CartService) RemoveItem(ctx context.Context, actor policy.Actor, itemID string) error {
	return s.store.Transaction(ctx, func(tx repositories.Store) error {
		_, item, err := s.ownedItem(ctx, tx, actor, itemID)
		if err != nil {
			return err
		}
		return tx.Carts().DeleteItem(ctx, item.ID)
	})
}

// Clear removes every line from the actor's cart.
func (s *CartService) Clear(ctx context.Context, actor policy.Actor) error {
	if err := s.policy.Authorize(actor, policy.CartUse, policy.Resource{Kind: "cart", OwnerID: actor.UserID}); err != nil {
		return err
	}
	cart, err := s.store.Carts().GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return err
	}
	return s.store.Carts().Clear(ctx, cart.ID)
}

// Checkout converts the actor's cart into a pending order.
//
// Every line is validated first without writing. Each line is then reserved
// against a freshly locked product row, so stock consumed by a concurrent
// checkout in between fails the whole operation. All writes share one
// transaction: a failure leaves no order, no detail, no stock change and the
// cart untouched.
func (s *CartService) Checkout(ctx context.Context, actor policy.Actor) (*models.Order, error) {
	if err := s.policy.Authorize(actor, policy.OrderCreate, policy.Resource{Kind: "cart", OwnerID: actor.UserID}); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		user, err := tx.Users().GetByID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		cart, err := tx.Carts().GetOrCreate(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return apperr.EmptyCart()
		}

		ledger := NewInventoryLedger(tx.Products())
		for i := range cart.Items {
			item := &cart.Items[i]
			if item.Product == nil {
				return apperr.NotFound("product", item.ProductID)
			}
			if err := ledger.Check(item.Product, item.Quantity); err != nil {
				return err
			}
		}

		order = &models.Order{
			UserID:          user.ID,
			Status:          models.OrderPending,
			Total:           cart.Total(),
			ShippingAddress: user.Address,
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		// Rows are locked in product id order so concurrent checkouts cannot deadlock.
		items := make([]*models.CartItem, len(cart.Items))
		for i := range cart.Items {
			items[i] = &cart.Items[i]
		}
		sort.Slice(items, func(a, b int) bool { return items[a].ProductID < items[b].ProductID })

		for _, item := range items {
			product, err := ledger.Reserve(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			detail := models.OrderDetail{
				OrderID:   order.ID,
				ProductID: product.ID,
				UnitPrice: product.FinalPrice(),
			}
			detail.Reprice(item.Quantity)
			if err := tx.Orders().CreateDetail(ctx, &detail); err != nil {
				return err
			}
			detail.Product = product
			order.Details = append(order.Details, detail)
		}

		order.Total = order.SumDetails()
		if err := tx.Orders().SetTotal(ctx, order.ID, order.Total); err != nil {
			return err
		}
		return tx.Carts().Clear(ctx, cart.ID)
	})
	if err != nil {
		s.logger.Warn("checkout failed", zap.String("user_id", actor.UserID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("order placed from cart",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("total", order.Total.StringFixed(2)))
	ev := events.New(events.OrderCreated, order.ID)
	ev.UserID = order.UserID
	ev.Status = order.Status.String()
	ev.Total = &order.Total
	s.notify(ctx, ev)
	return order, nil
}

// ownedItem loads a cart item and makes sure it sits in the actor's cart.
// Items of other carts are reported as not found.
func (s *CartService) ownedItem(ctx context.Context, tx repositories.Store, actor policy.Actor, itemID string) (*models.Cart, *models.CartItem, error) {
	if err := s.policy.Authorize(actor, policy.CartUse, policy.Resource{Kind: "cart", OwnerID: actor.UserID}); err != nil {
		return nil, nil, err
	}
	cart, err := tx.Carts().GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return nil, nil, err
	}
	item, err := tx.Carts().GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.CartID != cart.ID {
		return nil, nil, apperr.NotFound("cart item", itemID)
	}
	return cart, item, nil
}

// AddProduct is the catalog shortcut for adding one product to the cart.
func (s *CartService) AddProduct(ctx context.Context, actor policy.Actor, productID string, qty int) (*CartView, error) {
	if qty == 0 {
		qty = 1
	}
	view, err := s.AddItem(ctx, actor, productID, qty)
	if err != nil {
		return nil, fmt.Errorf("add product %s to cart: %w", productID, err)
	}
	return view, nil
}
