package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
	"storefront-backend/internal/pkg/response"
	"storefront-backend/internal/services"
)

// maxWebhookBody is the largest webhook payload read before verification.
const maxWebhookBody = 65536

type CheckoutHandler struct {
	checkout   *services.CheckoutService
	reconciler *services.Reconciler
	webhooks   services.WebhookVerifier
	logger     *slog.Logger
}

func NewCheckoutHandler(checkout *services.CheckoutService, reconciler *services.Reconciler, webhooks services.WebhookVerifier, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:   checkout,
		reconciler: reconciler,
		webhooks:   webhooks,
		logger:     logger,
	}
}

func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	session, err := h.checkout.CreateCheckoutSession(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

func (h *CheckoutHandler) VerifySession(c *gin.Context) {
	var req models.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	session, err := h.checkout.VerifySession(c.Request.Context(), currentUserID(c), req.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Reconcile is called by the success page after the provider redirects back.
func (h *CheckoutHandler) Reconcile(c *gin.Context) {
	var req models.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	result, err := h.reconciler.Reconcile(c.Request.Context(), req.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// StripeWebhook reconciles completed sessions pushed by the provider. Only
// retryable failures answer with a 5xx so the provider redelivers.
func (h *CheckoutHandler) StripeWebhook(c *gin.Context) {
	if h.webhooks == nil {
		response.Error(c, apierrors.ErrPaymentProvider.WithMessage("webhooks are not configured"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, apierrors.ErrBadRequest.WithMessage("failed to read webhook body"))
		return
	}

	event, err := h.webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "rejected webhook", slog.Any("error", err))
		response.Error(c, err)
		return
	}

	if !event.Completed() {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	result, err := h.reconciler.Reconcile(c.Request.Context(), event.SessionID)
	if err != nil {
		apiErr := apierrors.AsAPIError(err)
		if apiErr.Kind == apierrors.KindExternal {
			response.Error(c, err)
			return
		}
		// Unpaid async sessions arrive again as async_payment_succeeded.
		level := slog.LevelWarn
		if errors.Is(err, apierrors.ErrMalformedSessionMetadata) {
			level = slog.LevelError
		}
		h.logger.Log(c.Request.Context(), level, "webhook session not reconciled",
			slog.String("event_id", event.ID),
			slog.String("session_id", event.SessionID),
			slog.String("code", apiErr.Code),
		)
		c.JSON(http.StatusOK, gin.H{"received": true, "reconciled": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":   true,
		"reconciled": true,
		"duplicate":  result.Duplicate,
	})
}
