package repositories

import (
	"context"
	"fmt"

	"market/internal/apperr"
	"market/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMPaymentRepository is a GORM implementation of PaymentRepository.
type GORMPaymentRepository struct {
	db *gorm.DB
}

// NewGORMPaymentRepository creates a new instance of GORMPaymentRepository.
func NewGORMPaymentRepository(db *gorm.DB) *GORMPaymentRepository {
	return &GORMPaymentRepository{
		db: db,
	}
}

func (r *GORMPaymentRepository) GetAll(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	q := r.db.WithContext(ctx).Model(&models.Payment{})
	if filter.Status != "" {
		q = q.Where("payments.status = ?", filter.Status)
	}
	if filter.OrderID != "" {
		q = q.Where("payments.order_id = ?", filter.OrderID)
	}
	if filter.UserID != "" {
		q = q.Joins("JOIN orders ON orders.id = payments.order_id").
			Where("orders.user_id = ?", filter.UserID)
	}

	var payments []models.Payment
	if err := q.Order("payments.created_at DESC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	return payments, nil
}

func (r *GORMPaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "payment", id)
	}
	return &payment, nil
}

func (r *GORMPaymentRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "id = ?", id).Error
	if err != nil {
		return nil, lookupErr(err, "payment", id)
	}
	return &payment, nil
}

func (r *GORMPaymentRepository) CountOpen(ctx context.Context, orderID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND status IN ?", orderID, models.OpenPaymentStatuses).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count open payments of order %s: %w", orderID, err)
	}
	return n, nil
}

func (r *GORMPaymentRepository) ListOpen(ctx context.Context, orderID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, models.OpenPaymentStatuses).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open payments of order %s: %w", orderID, err)
	}
	return payments, nil
}

func (r *GORMPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *GORMPaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	res := r.db.WithContext(ctx).Model(payment).
		Select("status", "proof_file", "proof_url", "metadata", "updated_at").
		Updates(payment)
	if res.Error != nil {
		return fmt.Errorf("failed to update payment %s: %w", payment.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("payment", payment.ID)
	}
	return nil
}

func (r *GORMPaymentRepository) DeleteByOrder(ctx context.Context, orderID string) error {
	if err := r.db.WithContext(ctx).Delete(&models.Payment{}, "order_id = ?", orderID).Error; err != nil {
		return fmt.Errorf("failed to delete payments of order %s: %w", orderID, err)
	}
	return nil
}
