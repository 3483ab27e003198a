package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

// WishlistService writes single wishlist documents. Concurrent writers race
// and the last write wins. Owned games are never wishlisted.
type WishlistService struct {
	store       WishlistStore
	games       CatalogStore
	owned       EntitlementStore
	broadcaster *Broadcaster
}

func NewWishlistService(store WishlistStore, games CatalogStore, owned EntitlementStore, broadcaster *Broadcaster) *WishlistService {
	return &WishlistService{
		store:       store,
		games:       games,
		owned:       owned,
		broadcaster: broadcaster,
	}
}

func (s *WishlistService) Add(ctx context.Context, userID, gameID string) error {
	if _, err := s.games.GetGame(ctx, gameID); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return apierrors.NewNotFoundError("Game")
		}
		return apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load game %s: %w", gameID, err))
	}

	owned, err := s.owned.HasEntitlement(ctx, userID, gameID)
	if err != nil {
		return apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to check entitlement: %w", err))
	}
	if owned {
		return apierrors.ErrConflict.WithMessage("Game already in library")
	}

	err = s.store.AddToWishlist(ctx, &models.WishlistEntry{
		UserID:  userID,
		GameID:  gameID,
		AddedAt: time.Now(),
	})
	if err != nil {
		return apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to add to wishlist: %w", err))
	}

	s.broadcaster.BroadcastWishlistChanged(ctx, userID, gameID)
	return nil
}

func (s *WishlistService) Remove(ctx context.Context, userID, gameID string) error {
	if err := s.store.RemoveFromWishlist(ctx, userID, gameID); err != nil {
		return apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to remove from wishlist: %w", err))
	}
	s.broadcaster.BroadcastWishlistChanged(ctx, userID, gameID)
	return nil
}

// List returns the wishlist, most recently added first.
func (s *WishlistService) List(ctx context.Context, userID string) ([]*models.WishlistEntry, error) {
	entries, err := s.store.ListWishlist(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list wishlist: %w", err))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AddedAt.After(entries[j].AddedAt)
	})
	return entries, nil
}
