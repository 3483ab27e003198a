package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
	"storefront-backend/internal/pkg/response"
	"storefront-backend/internal/services"
)

type AuthHandler struct {
	wallet *services.WalletAuthService
}

func NewAuthHandler(wallet *services.WalletAuthService) *AuthHandler {
	return &AuthHandler{wallet: wallet}
}

// Nonce issues the message the wallet has to sign.
func (h *AuthHandler) Nonce(c *gin.Context) {
	var req models.NonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	message, err := h.wallet.IssueChallenge(c.Request.Context(), req.Address)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// Verify exchanges a signed challenge for a session token.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	token, err := h.wallet.VerifySignature(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Cleanup discards the challenge once the client has signed in.
func (h *AuthHandler) Cleanup(c *gin.Context) {
	var req models.NonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	if err := h.wallet.CleanupChallenge(c.Request.Context(), req.Address); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
