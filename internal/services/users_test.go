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

func TestUsers_ProfileAndRole(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	users := services.NewUserService(store, store, testLogger())

	_, err := users.GetProfile(ctx, "u1")
	assert.True(t, errors.Is(err, apierrors.ErrNotFound))

	role, err := users.Role(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)

	user, err := users.UpdateProfile(ctx, "u1", &models.ProfileUpdate{DisplayName: " Ada ", Email: "ada@example.com", AgeVerified: true})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.DisplayName)
	assert.Equal(t, models.RoleUser, user.Role)

	_, err = users.UpdateProfile(ctx, "u1", &models.ProfileUpdate{DisplayName: "Ada", Email: "not-an-email"})
	assert.Error(t, err)

	user, err = users.SetRole(ctx, "u1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	_, err = users.SetRole(ctx, "u1", "superuser")
	assert.Error(t, err)
}

func TestDeveloperApplications(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	users := services.NewUserService(store, store, testLogger())
	admin := services.NewAdminService(users, store, store, testLogger())
	seedUser(t, store, "u1", models.RoleUser)

	req := &models.DeveloperApplicationRequest{StudioName: "Tiny Forge", Pitch: "Roguelikes"}
	app, err := users.Apply(ctx, "u1", req)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationPending, app.Status)

	_, err = users.Apply(ctx, "u1", req)
	assert.True(t, errors.Is(err, apierrors.ErrConflict))

	pending, err := admin.ListPendingApplications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	reviewed, err := admin.ReviewApplication(ctx, "admin1", "u1", app.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApproved, reviewed.Status)
	assert.Equal(t, "admin1", reviewed.ReviewedBy)

	role, err := users.Role(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDev, role)

	_, err = admin.ReviewApplication(ctx, "admin1", "u1", app.ID, false)
	assert.True(t, errors.Is(err, apierrors.ErrConflict))

	pending, err = admin.ListPendingApplications(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAdminMessages(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	users := services.NewUserService(store, store, testLogger())
	admin := services.NewAdminService(users, store, store, testLogger())

	for _, subject := range []string{"first", "second"} {
		_, err := users.SendAdminMessage(ctx, "u1", &models.AdminMessageRequest{Subject: subject, Body: "hello"})
		require.NoError(t, err)
	}

	msgs, err := admin.ListAdminMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Subject)
}
