package repositories

import (
	"context"

	"market/internal/models"
)

// PaymentRepository defines the interface for payment data access.
type PaymentRepository interface {
	GetAll(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.Payment, error)
	// CountOpen counts the pending or in-review payments of an order.
	CountOpen(ctx context.Context, orderID string) (int64, error)
	ListOpen(ctx context.Context, orderID string) ([]models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	DeleteByOrder(ctx context.Context, orderID string) error
}
