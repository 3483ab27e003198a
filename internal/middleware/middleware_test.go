package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/internal/config"
	"storefront-backend/internal/middleware"
	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

type roleMap map[string]models.Role

func (r roleMap) Role(ctx context.Context, userID string) (models.Role, error) {
	if role, ok := r[userID]; ok {
		return role, nil
	}
	return models.RoleUser, nil
}

type failingLimiter struct{}

func (failingLimiter) CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func newEngine(jwtService *services.JWTService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{middleware.AuthMiddleware(jwtService)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(middleware.ContextUserID)})
	})
	r.POST("/api/checkout/session", handlers...)
	r.GET("/api/admin/sales", handlers...)
	return r
}

func request(t *testing.T, r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "secret"})
	r := newEngine(jwtService)

	w := request(t, r, http.MethodGet, "/api/admin/sales", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(t, r, http.MethodGet, "/api/admin/sales", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwtService.GenerateToken("0xabc")
	require.NoError(t, err)
	w = request(t, r, http.MethodGet, "/api/admin/sales", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0xabc")
}

func TestRequireRole(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "secret"})
	roles := roleMap{"0xadmin": models.RoleAdmin}
	r := newEngine(jwtService, middleware.RequireRole(roles, models.RoleAdmin))

	userToken, _ := jwtService.GenerateToken("0xuser")
	adminToken, _ := jwtService.GenerateToken("0xadmin")

	assert.Equal(t, http.StatusForbidden, request(t, r, http.MethodGet, "/api/admin/sales", userToken).Code)
	assert.Equal(t, http.StatusOK, request(t, r, http.MethodGet, "/api/admin/sales", adminToken).Code)

	// Promotion takes effect without a new token.
	roles["0xuser"] = models.RoleAdmin
	assert.Equal(t, http.StatusOK, request(t, r, http.MethodGet, "/api/admin/sales", userToken).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "secret"})
	store := services.NewMemoryStore()
	r := newEngine(jwtService, middleware.RateLimitMiddleware(store, 4))

	token, _ := jwtService.GenerateToken("0xabc")

	// Checkout gets half the per-minute budget.
	for i := 0; i < 2; i++ {
		w := request(t, r, http.MethodPost, "/api/checkout/session", token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}
	w := request(t, r, http.MethodPost, "/api/checkout/session", token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	other, _ := jwtService.GenerateToken("0xother")
	assert.Equal(t, http.StatusOK, request(t, r, http.MethodPost, "/api/checkout/session", other).Code)

	// Routes outside the throttled set are never limited.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, request(t, r, http.MethodGet, "/api/admin/sales", token).Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "secret"})
	r := newEngine(jwtService, middleware.RateLimitMiddleware(failingLimiter{}, 1))

	token, _ := jwtService.GenerateToken("0xabc")
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, request(t, r, http.MethodPost, "/api/checkout/session", token).Code)
	}
}
