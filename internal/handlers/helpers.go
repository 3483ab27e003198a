package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/middleware"
)

func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

// queryLimit reads ?limit=, falling back to def for missing or bad values.
func queryLimit(c *gin.Context, def int64) int64 {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
