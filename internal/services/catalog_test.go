package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
	"storefront-backend/internal/services"
)

func newCatalog(store *services.MemoryStore, devProduct string) *services.CatalogService {
	entitlements := services.NewEntitlementService(store, devProduct, nil)
	diagnostics := services.NewDiagnostics(store, testLogger())
	return services.NewCatalogService(store, store, entitlements, diagnostics, testLogger())
}

func gameInput(title string) *models.GameInput {
	return &models.GameInput{
		Title:  title,
		Price:  12.5,
		Genres: []string{"puzzle"},
	}
}

func TestCatalog_SubmitRequiresPublisher(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	catalog := newCatalog(store, "dev-kit")

	seedUser(t, store, "plain", models.RoleUser)
	seedUser(t, store, "dev", models.RoleDev)

	_, err := catalog.Submit(ctx, "plain", gameInput("Nope"))
	assert.True(t, errors.Is(err, apierrors.ErrPermissionDenied))

	denied, err := store.ListPermissionDenied(ctx, 0)
	require.NoError(t, err)
	require.Len(t, denied, 1)
	assert.Equal(t, "create", denied[0].Operation)
	assert.Equal(t, "plain", denied[0].UserID)

	game, err := catalog.Submit(ctx, "dev", gameInput("Yes"))
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusPending, game.Status)
	assert.Equal(t, "dev", game.DeveloperID)

	// Owning the developer upgrade is enough.
	_, err = store.GrantEntitlement(ctx, &models.LibraryEntry{UserID: "plain", GameID: "dev-kit", PurchasedAt: game.SubmittedAt})
	require.NoError(t, err)
	_, err = catalog.Submit(ctx, "plain", gameInput("Now yes"))
	assert.NoError(t, err)
}

func TestCatalog_ModerationFlow(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	catalog := newCatalog(store, "")
	seedUser(t, store, "dev", models.RoleDev)
	seedUser(t, store, "other", models.RoleDev)

	game, err := catalog.Submit(ctx, "dev", gameInput("Hollow Peaks"))
	require.NoError(t, err)

	pending, err := catalog.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	public, err := catalog.ListApproved(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, public)

	_, err = catalog.Get(ctx, "", game.ID)
	assert.True(t, errors.Is(err, apierrors.ErrNotFound))
	_, err = catalog.Get(ctx, "dev", game.ID)
	assert.NoError(t, err)

	_, err = catalog.Reject(ctx, game.ID, " ")
	assert.Error(t, err)

	rejected, err := catalog.Reject(ctx, game.ID, "missing screenshots")
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusRejected, rejected.Status)

	_, err = catalog.Update(ctx, "other", game.ID, gameInput("Hijack"))
	assert.True(t, errors.Is(err, apierrors.ErrPermissionDenied))

	updated, err := catalog.Update(ctx, "dev", game.ID, gameInput("Hollow Peaks 2"))
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusPending, updated.Status)
	assert.Empty(t, updated.RejectionReason)

	_, err = catalog.Approve(ctx, game.ID)
	require.NoError(t, err)

	public, err = catalog.ListApproved(ctx, "puzzle")
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "Hollow Peaks 2", public[0].Title)

	public, err = catalog.ListApproved(ctx, "racing")
	require.NoError(t, err)
	assert.Empty(t, public)

	_, err = catalog.Approve(ctx, "missing")
	assert.True(t, errors.Is(err, apierrors.ErrNotFound))
}

func TestRecommend_RanksBySharedGenres(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	catalog := newCatalog(store, "")

	seedGame(t, store, "owned", 5, models.GameStatusApproved, "rpg", "fantasy")
	seedGame(t, store, "close", 5, models.GameStatusApproved, "rpg", "fantasy")
	seedGame(t, store, "some", 5, models.GameStatusApproved, "rpg", "racing")
	seedGame(t, store, "none", 5, models.GameStatusApproved, "sports")
	seedGame(t, store, "hidden", 5, models.GameStatusPending, "rpg", "fantasy")

	_, err := store.GrantEntitlement(ctx, &models.LibraryEntry{UserID: "u1", GameID: "owned", PurchasedAt: fixedTime})
	require.NoError(t, err)

	recs, err := services.NewRecommendationService(catalog, store, store).Recommend(ctx, "u1", 0)
	require.NoError(t, err)

	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.Game.ID)
	}
	assert.Equal(t, []string{"close", "some", "none"}, ids)
	assert.Equal(t, 2, recs[0].SharedGenres)

	recs, err = services.NewRecommendationService(catalog, store, store).Recommend(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
