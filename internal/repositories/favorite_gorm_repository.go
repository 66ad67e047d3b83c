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

// GORMFavoriteRepository is a GORM implementation of FavoriteRepository.
type GORMFavoriteRepository struct {
	db *gorm.DB
}

// NewGORMFavoriteRepository creates a new instance of GORMFavoriteRepository.
func NewGORMFavoriteRepository(db *gorm.DB) *GORMFavoriteRepository {
	return &GORMFavoriteRepository{
		db: db,
	}
}

func (r *GORMFavoriteRepository) Add(ctx context.Context, userID, productID string) (bool, error) {
	fav := models.Favorite{ID: uuid.New().String(), UserID: userID, ProductID: productID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Omit("Product").
		Create(&fav)
	if res.Error != nil {
		return false, fmt.Errorf("failed to add favorite: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMFavoriteRepository) Remove(ctx context.Context, userID, productID string) error {
	res := r.db.WithContext(ctx).Delete(&models.Favorite{}, "user_id = ? AND product_id = ?", userID, productID)
	if res.Error != nil {
		return fmt.Errorf("failed to remove favorite: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("favorite", productID)
	}
	return nil
}

func (r *GORMFavoriteRepository) List(ctx context.Context, userID string) ([]models.Favorite, error) {
	var favorites []models.Favorite
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favorites).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites of user %s: %w", userID, err)
	}
	return favorites, nil
}
