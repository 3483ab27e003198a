package middleware

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "storefront-backend/internal/pkg/errors"
	"storefront-backend/internal/pkg/response"
	"storefront-backend/internal/services"
)

// RateLimitMiddleware throttles the write endpoints per user. Store errors
// let the request through.
func RateLimitMiddleware(limiter services.RateLimiter, perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 60
	}

	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID == "" {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var action string
		limit := perMinute
		window := time.Minute

		switch {
		case strings.HasPrefix(path, "/api/checkout"):
			action = "checkout"
			limit = perMinute / 2
		case strings.HasPrefix(path, "/api/purchases"):
			action = "reconcile"
		case strings.HasPrefix(path, "/api/wishlist") && c.Request.Method != "GET":
			action = "wishlist"
			limit = perMinute * 2
		case strings.HasPrefix(path, "/api/messages"), strings.HasPrefix(path, "/api/developer/applications"):
			action = "message"
			limit = 5
		default:
			c.Next()
			return
		}
		if limit < 1 {
			limit = 1
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), userID, action, limit, window)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "rate limit check failed",
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Error(c, apierrors.ErrRateLimited.WithDetails(map[string]float64{"retry_after": window.Seconds()}))
			return
		}

		c.Next()
	}
}
