package repositories

import (
	"context"

	"market/internal/models"
)

// ShipmentRepository defines the interface for shipment data access.
type ShipmentRepository interface {
	// GetAll lists shipments newest first. A non-empty userID limits the
	// result to shipments of that user's orders.
	GetAll(ctx context.Context, userID string) ([]models.Shipment, error)
	GetByID(ctx context.Context, id string) (*models.Shipment, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.Shipment, error)
	Create(ctx context.Context, shipment *models.Shipment) error
	UpdateStatus(ctx context.Context, id string, status models.ShipmentStatus) error
	DeleteByOrder(ctx context.Context, orderID string) error
}
