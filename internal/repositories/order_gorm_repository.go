package repositories

import (
	"context"
	"fmt"

	"market/internal/apperr"
	"market/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// GetAll retrieves all orders, newest first.
func (r *GORMOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).Preload("Details").Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Details").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders of user %s: %w", userID, err)
	}
	return orders, nil
}

func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Details.Product").First(&order, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "order", id)
	}
	return &order, nil
}

func (r *GORMOrderRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, lookupErr(err, "order", id)
	}
	// The lock covers the order row only.
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Order("id").Find(&order.Details).Error; err != nil {
		return nil, fmt.Errorf("failed to load details of order %s: %w", id, err)
	}
	return &order, nil
}

// Create inserts the order row only; details are written with CreateDetail.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *GORMOrderRepository) Update(ctx context.Context, order *models.Order) error {
	res := r.db.WithContext(ctx).Model(order).
		Select("status", "total", "shipping_address", "updated_at").
		Updates(order)
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("order", order.ID)
	}
	return nil
}

// UpdateStatus updates the status of an existing order.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update order status for ID %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

func (r *GORMOrderRepository) SetTotal(ctx context.Context, id string, total decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("total", total)
	if res.Error != nil {
		return fmt.Errorf("failed to set total of order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

func (r *GORMOrderRepository) CreateDetail(ctx context.Context, detail *models.OrderDetail) error {
	if detail.ID == "" {
		detail.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit("Product").Create(detail).Error; err != nil {
		return fmt.Errorf("failed to create order detail: %w", err)
	}
	return nil
}

func (r *GORMOrderRepository) UpdateDetail(ctx context.Context, detail *models.OrderDetail) error {
	res := r.db.WithContext(ctx).Model(detail).
		Select("quantity", "subtotal").
		Updates(detail)
	if res.Error != nil {
		return fmt.Errorf("failed to update order detail %s: %w", detail.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("order detail", detail.ID)
	}
	return nil
}

func (r *GORMOrderRepository) DeleteDetail(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.OrderDetail{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete order detail %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("order detail", id)
	}
	return nil
}

// Delete removes the details explicitly, since SQLite only cascades with
// foreign keys switched on.
func (r *GORMOrderRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Delete(&models.OrderDetail{}, "order_id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete details of order %s: %w", id, err)
	}
	res := db.Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}
