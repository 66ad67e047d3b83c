package repositories

import (
	"context"

	"market/internal/models"
)

// CartRepository defines the interface for cart data access.
type CartRepository interface {
	// GetOrCreate returns the user's cart with items and products, creating
	// an empty one on first access.
	GetOrCreate(ctx context.Context, userID string) (*models.Cart, error)
	GetItem(ctx context.Context, id string) (*models.CartItem, error)
	// FindItem returns the cart line for productID, or nil when there is none.
	FindItem(ctx context.Context, cartID, productID string) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, id string, qty int) error
	DeleteItem(ctx context.Context, id string) error
	Clear(ctx context.Context, cartID string) error
}
