package services

import (
	"context"

	"market/internal/models"
	"market/internal/policy"
	"market/internal/repositories"
)

// FavoriteService manages product bookmarks.
type FavoriteService struct {
	store  repositories.Store
	policy policy.Policy
}

// NewFavoriteService creates a new FavoriteService.
func NewFavoriteService(store repositories.Store, pol policy.Policy) *FavoriteService {
	return &FavoriteService{store: store, policy: pol}
}

// Add bookmarks a product. created is false if it was already bookmarked.
func (s *FavoriteService) Add(ctx context.Context, actor policy.Actor, productID string) (bool, error) {
	if err := s.policy.Authorize(actor, policy.FavoriteUse, policy.Resource{Kind: "favorite", OwnerID: actor.UserID}); err != nil {
		return false, err
	}
	if _, err := s.store.Products().GetByID(ctx, productID); err != nil {
		return false, err
	}
	return s.store.Favorites().Add(ctx, actor.UserID, productID)
}

func (s *FavoriteService) Remove(ctx context.Context, actor policy.Actor, productID string) error {
	if err := s.policy.Authorize(actor, policy.FavoriteUse, policy.Resource{Kind: "favorite", OwnerID: actor.UserID}); err != nil {
		return err
	}
	return s.store.Favorites().Remove(ctx, actor.UserID, productID)
}

// List returns the favorites of userID, or of the actor when userID is
// empty. Only staff may list someone else's favorites.
func (s *FavoriteService) List(ctx context.Context, actor policy.Actor, userID string) ([]models.Favorite, error) {
	if userID == "" || userID == actor.UserID {
		if err := s.policy.Authorize(actor, policy.FavoriteUse, policy.Resource{Kind: "favorite", OwnerID: actor.UserID}); err != nil {
			return nil, err
		}
		return s.store.Favorites().List(ctx, actor.UserID)
	}
	if err := s.policy.Authorize(actor, policy.FavoriteReadAny, policy.Resource{Kind: "favorite", OwnerID: userID}); err != nil {
		return nil, err
	}
	return s.store.Favorites().List(ctx, userID)
}

// Merge bookmarks several products at once, typically a guest's local list
// after login. Unknown products are ignored. It returns how many were new.
func (s *FavoriteService) Merge(ctx context.Context, actor policy.Actor, productIDs []string) (int, error) {
	if err := s.policy.Authorize(actor, policy.FavoriteUse, policy.Resource{Kind: "favorite", OwnerID: actor.UserID}); err != nil {
		return 0, err
	}
	created := 0
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		for _, id := range productIDs {
			if _, err := tx.Products().GetByID(ctx, id); err != nil {
				if isNotFound(err, "product") {
					continue
				}
				return err
			}
			ok, err := tx.Favorites().Add(ctx, actor.UserID, id)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
