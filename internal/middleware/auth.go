package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
	"storefront-backend/internal/pkg/response"
	"storefront-backend/internal/services"
)

const (
	ContextUserID    = "user_id"
	ContextSessionID = "session_id"
	ContextRole      = "role"
)

type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

type RoleResolver interface {
	Role(ctx context.Context, userID string) (models.Role, error)
}

// AuthMiddleware accepts a bearer token, or a token query parameter for
// websocket upgrades that cannot set headers.
func AuthMiddleware(jwtService TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Error(c, apierrors.ErrUnauthorized.WithMessage("Invalid authorization format"))
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				response.Error(c, apierrors.ErrUnauthorized.WithMessage("Authorization header required"))
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			response.Error(c, apierrors.ErrUnauthorized.WithMessage("Invalid or expired token"))
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextSessionID, claims.SessionID)

		c.Next()
	}
}

// OptionalAuth sets the user when a valid bearer token is present and lets
// anonymous requests through.
func OptionalAuth(jwtService TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if ok {
			if claims, err := jwtService.ValidateToken(token); err == nil {
				c.Set(ContextUserID, claims.UserID)
				c.Set(ContextSessionID, claims.SessionID)
			}
		}
		c.Next()
	}
}

// RequireRole loads the caller's current role from the store; roles in
// tokens would go stale after a promotion.
func RequireRole(users RoleResolver, allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID == "" {
			response.Error(c, apierrors.ErrUnauthorized)
			return
		}

		role, err := users.Role(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err)
			return
		}

		for _, r := range allowed {
			if role == r {
				c.Set(ContextRole, string(role))
				c.Next()
				return
			}
		}

		response.Error(c, apierrors.ErrForbidden)
	}
}
