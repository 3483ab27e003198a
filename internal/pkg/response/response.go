// Package response provides JSON response helpers for gin handlers.
package response

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "storefront-backend/internal/pkg/errors"
)

// Error writes an error body. Unknown errors become internal errors and are
// logged with their cause; the client only sees the code and message.
func Error(c *gin.Context, err error) {
	apiErr := apierrors.AsAPIError(err)

	if apiErr.Kind == apierrors.KindExternal {
		slog.ErrorContext(c.Request.Context(), "request failed",
			slog.String("path", c.FullPath()),
			slog.String("code", apiErr.Code),
			slog.Any("error", err),
		)
	}

	c.AbortWithStatusJSON(apiErr.StatusCode, gin.H{
		"error":   apiErr.Message,
		"code":    apiErr.Code,
		"kind":    apiErr.Kind,
		"details": apiErr.Details,
	})
}

// BadRequest writes a 400 for a binding failure, matching the gin binding
// error texture used across handlers.
func BadRequest(c *gin.Context, err error) {
	Error(c, apierrors.ErrBadRequest.WithDetails(err.Error()))
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}
