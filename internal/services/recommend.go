package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

const DefaultRecommendations = 10

type Recommendation struct {
	Game         *models.Game `json:"game"`
	SharedGenres int          `json:"sharedGenres"`
}

// RecommendationService ranks approved games the user does not own by how many
// genres they share with the user's library and wishlist.
type RecommendationService struct {
	catalog      *CatalogService
	entitlements EntitlementStore
	wishlist     WishlistStore
}

func NewRecommendationService(catalog *CatalogService, entitlements EntitlementStore, wishlist WishlistStore) *RecommendationService {
	return &RecommendationService{
		catalog:      catalog,
		entitlements: entitlements,
		wishlist:     wishlist,
	}
}

func (s *RecommendationService) Recommend(ctx context.Context, userID string, limit int) ([]*Recommendation, error) {
	if limit <= 0 {
		limit = DefaultRecommendations
	}

	games, err := s.catalog.ListApproved(ctx, "")
	if err != nil {
		return nil, err
	}

	owned, err := s.entitlements.ListEntitlements(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list entitlements: %w", err))
	}
	wished, err := s.wishlist.ListWishlist(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list wishlist: %w", err))
	}

	byID := make(map[string]*models.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}

	ownedIDs := make(map[string]struct{}, len(owned))
	taste := make(map[string]struct{})
	for _, e := range owned {
		ownedIDs[e.GameID] = struct{}{}
		addGenres(taste, byID[e.GameID])
	}
	for _, w := range wished {
		addGenres(taste, byID[w.GameID])
	}

	out := make([]*Recommendation, 0, len(games))
	for _, g := range games {
		if _, ok := ownedIDs[g.ID]; ok {
			continue
		}
		shared := 0
		for _, genre := range g.Genres {
			if _, ok := taste[strings.ToLower(genre)]; ok {
				shared++
			}
		}
		out = append(out, &Recommendation{Game: g, SharedGenres: shared})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SharedGenres != out[j].SharedGenres {
			return out[i].SharedGenres > out[j].SharedGenres
		}
		return byTitle(out[i].Game, out[j].Game)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func addGenres(set map[string]struct{}, g *models.Game) {
	if g == nil {
		return
	}
	for _, genre := range g.Genres {
		set[strings.ToLower(genre)] = struct{}{}
	}
}
