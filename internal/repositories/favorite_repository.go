package repositories

import (
	"context"

	"market/internal/models"
)

// FavoriteRepository defines the interface for favorite data access.
type FavoriteRepository interface {
	// Add bookmarks productID for userID. created is false when the pair
	// already existed.
	Add(ctx context.Context, userID, productID string) (created bool, err error)
	Remove(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string) ([]models.Favorite, error)
}
