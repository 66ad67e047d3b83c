package repositories

import (
	"context"

	"market/internal/models"

	"github.com/shopspring/decimal"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	// ListByUser returns the orders of one user, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	// GetByID loads the order with its details and their products.
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// GetByIDForUpdate locks the order row for the rest of the transaction
	// and loads its details.
	GetByIDForUpdate(ctx context.Context, id string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
	SetTotal(ctx context.Context, id string, total decimal.Decimal) error
	CreateDetail(ctx context.Context, detail *models.OrderDetail) error
	UpdateDetail(ctx context.Context, detail *models.OrderDetail) error
	DeleteDetail(ctx context.Context, id string) error
	// Delete removes the order and its details.
	Delete(ctx context.Context, id string) error
}
