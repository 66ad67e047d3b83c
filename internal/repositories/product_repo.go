package repositories

import (
	"context"

	"market/internal/models"

	"github.com/shopspring/decimal"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// GetByIDForUpdate reads the product and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error

	// AddSold increments the sold counter only if the product is unlimited or
	// still has qty units available. It reports whether the row was updated.
	AddSold(ctx context.Context, id string, qty int) (bool, error)
	// ReturnStock gives qty units back, taking them off the sold counter first
	// and adding any remainder to the base stock.
	ReturnStock(ctx context.Context, id string, qty int) error
	ResetSold(ctx context.Context, id string) error
	// ApplyMarkup reprices every product with a supplier price and no manual
	// price as supplier_price * multiplier.
	ApplyMarkup(ctx context.Context, multiplier decimal.Decimal) (int64, error)
}
