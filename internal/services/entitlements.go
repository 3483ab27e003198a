package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"storefront-backend/internal/metrics"
	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

// EntitlementService answers "does this user own this game". It is the only
// reader of the library collection outside the reconciler.
type EntitlementService struct {
	store            EntitlementStore
	developerProduct string
	broadcaster      *Broadcaster
}

func NewEntitlementService(store EntitlementStore, developerProduct string, broadcaster *Broadcaster) *EntitlementService {
	return &EntitlementService{
		store:            store,
		developerProduct: developerProduct,
		broadcaster:      broadcaster,
	}
}

func (s *EntitlementService) HasEntitlement(ctx context.Context, userID, gameID string) (bool, error) {
	if userID == "" || gameID == "" {
		return false, nil
	}
	owned, err := s.store.HasEntitlement(ctx, userID, gameID)
	if err != nil {
		return false, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to check entitlement: %w", err))
	}
	return owned, nil
}

// GrantEntitlement creates the library entry if it does not exist yet and
// reports whether it did. An existing entry keeps its original price. Open
// mirrors of the user are told about new entries.
func (s *EntitlementService) GrantEntitlement(ctx context.Context, userID, gameID string, priceAtPurchase float64) (bool, error) {
	entry := &models.LibraryEntry{
		UserID:          userID,
		GameID:          gameID,
		PriceAtPurchase: priceAtPurchase,
		PurchasedAt:     time.Now(),
	}
	if err := models.Validate(entry); err != nil {
		return false, apierrors.ErrBadRequest.WithDetails(err.Error())
	}

	created, err := s.store.GrantEntitlement(ctx, entry)
	if err != nil {
		return false, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to grant entitlement: %w", err))
	}
	if created {
		metrics.EntitlementsGranted.Inc()
		s.broadcaster.BroadcastLibraryChanged(ctx, userID, gameID)
	}
	return created, nil
}

// ListEntitlements returns the owned game ids, oldest purchase first.
func (s *EntitlementService) ListEntitlements(ctx context.Context, userID string) ([]string, error) {
	entries, err := s.Library(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.GameID)
	}
	return ids, nil
}

func (s *EntitlementService) Library(ctx context.Context, userID string) ([]*models.LibraryEntry, error) {
	entries, err := s.store.ListEntitlements(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list entitlements: %w", err))
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PurchasedAt.Equal(entries[j].PurchasedAt) {
			return entries[i].GameID < entries[j].GameID
		}
		return entries[i].PurchasedAt.Before(entries[j].PurchasedAt)
	})
	return entries, nil
}

// DeveloperToolsUnlocked reports whether the user bought the developer
// upgrade product.
func (s *EntitlementService) DeveloperToolsUnlocked(ctx context.Context, userID string) (bool, error) {
	if s.developerProduct == "" {
		return false, nil
	}
	return s.HasEntitlement(ctx, userID, s.developerProduct)
}

func (s *EntitlementService) DeveloperProduct() string {
	return s.developerProduct
}
