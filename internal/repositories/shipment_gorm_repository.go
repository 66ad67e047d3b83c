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

// GORMShipmentRepository is a GORM implementation of ShipmentRepository.
type GORMShipmentRepository struct {
	db *gorm.DB
}

// NewGORMShipmentRepository creates a new instance of GORMShipmentRepository.
func NewGORMShipmentRepository(db *gorm.DB) *GORMShipmentRepository {
	return &GORMShipmentRepository{
		db: db,
	}
}

func (r *GORMShipmentRepository) GetAll(ctx context.Context, userID string) ([]models.Shipment, error) {
	q := r.db.WithContext(ctx).Model(&models.Shipment{})
	if userID != "" {
		q = q.Joins("JOIN orders ON orders.id = shipments.order_id").
			Where("orders.user_id = ?", userID)
	}

	var shipments []models.Shipment
	if err := q.Order("shipments.created_at DESC").Find(&shipments).Error; err != nil {
		return nil, fmt.Errorf("failed to get shipments: %w", err)
	}
	return shipments, nil
}

func (r *GORMShipmentRepository) GetByID(ctx context.Context, id string) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).First(&shipment, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "shipment", id)
	}
	return &shipment, nil
}

func (r *GORMShipmentRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shipment, "id = ?", id).Error
	if err != nil {
		return nil, lookupErr(err, "shipment", id)
	}
	return &shipment, nil
}

func (r *GORMShipmentRepository) Create(ctx context.Context, shipment *models.Shipment) error {
	if shipment.ID == "" {
		shipment.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(shipment).Error; err != nil {
		return fmt.Errorf("failed to create shipment: %w", err)
	}
	return nil
}

func (r *GORMShipmentRepository) UpdateStatus(ctx context.Context, id string, status models.ShipmentStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Shipment{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update shipment status for ID %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("shipment", id)
	}
	return nil
}

func (r *GORMShipmentRepository) DeleteByOrder(ctx context.Context, orderID string) error {
	if err := r.db.WithContext(ctx).Delete(&models.Shipment{}, "order_id = ?", orderID).Error; err != nil {
		return fmt.Errorf("failed to delete shipments of order %s: %w", orderID, err)
	}
	return nil
}
