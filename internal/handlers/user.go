package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
	"storefront-backend/internal/pkg/response"
	"storefront-backend/internal/services"
)

type UserHandler struct {
	users        *services.UserService
	entitlements *services.EntitlementService
}

func NewUserHandler(users *services.UserService, entitlements *services.EntitlementService) *UserHandler {
	return &UserHandler{
		users:        users,
		entitlements: entitlements,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := currentUserID(c)

	user, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	devTools, err := h.entitlements.DeveloperToolsUnlocked(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":           user,
		"canPublish":     user.Role.CanPublish() || devTools,
		"developerTools": devTools,
	})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) SendMessage(c *gin.Context) {
	var req models.AdminMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	msg, err := h.users.SendAdminMessage(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
