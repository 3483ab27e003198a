package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

func TestEntitlements_GrantIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := services.NewMemoryStore()
	entitlements := services.NewEntitlementService(store, "", services.NewBroadcaster(store, testLogger()))

	events, unsubscribe, err := store.SubscribeUserEvents(ctx, "u1")
	require.NoError(t, err)
	defer unsubscribe()

	owned, err := entitlements.HasEntitlement(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.False(t, owned)

	created, err := entitlements.GrantEntitlement(ctx, "u1", "g1", 10)
	require.NoError(t, err)
	assert.True(t, created)

	select {
	case event := <-events:
		assert.Equal(t, models.EventLibraryChanged, event.Type)
		assert.Equal(t, []string{"g1"}, event.GameIDs)
	case <-time.After(time.Second):
		t.Fatal("expected library_changed event")
	}

	created, err = entitlements.GrantEntitlement(ctx, "u1", "g1", 3)
	require.NoError(t, err)
	assert.False(t, created)

	select {
	case event := <-events:
		t.Fatalf("unexpected event for existing entry: %s", event.Type)
	case <-time.After(50 * time.Millisecond):
	}

	library, err := entitlements.Library(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, library, 1)
	assert.Equal(t, 10.0, library[0].PriceAtPurchase)

	ids, err := entitlements.ListEntitlements(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ids)

	owned, err = entitlements.HasEntitlement(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestEntitlements_GrantRejectsInvalidInput(t *testing.T) {
	store := services.NewMemoryStore()
	entitlements := services.NewEntitlementService(store, "", nil)

	_, err := entitlements.GrantEntitlement(context.Background(), "", "g1", 10)
	assert.Error(t, err)

	_, err = entitlements.GrantEntitlement(context.Background(), "u1", "g1", -1)
	assert.Error(t, err)

	entries, err := store.ListEntitlements(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
