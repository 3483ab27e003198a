package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
	"storefront-backend/internal/pkg/response"
	"storefront-backend/internal/services"
)

const defaultAdminListLimit = 100

type AdminHandler struct {
	catalog     *services.CatalogService
	users       *services.UserService
	admin       *services.AdminService
	diagnostics *services.Diagnostics
	hub         *WebSocketHub
}

func NewAdminHandler(catalog *services.CatalogService, users *services.UserService, admin *services.AdminService, diagnostics *services.Diagnostics, hub *WebSocketHub) *AdminHandler {
	return &AdminHandler{
		catalog:     catalog,
		users:       users,
		admin:       admin,
		diagnostics: diagnostics,
		hub:         hub,
	}
}

func (h *AdminHandler) PendingGames(c *gin.Context) {
	games, err := h.catalog.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (h *AdminHandler) ApproveGame(c *gin.Context) {
	game, err := h.catalog.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastCatalogUpdate(game.ID, game.Status)
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}

func (h *AdminHandler) RejectGame(c *gin.Context) {
	var req models.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	game, err := h.catalog.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}

func (h *AdminHandler) SetRole(c *gin.Context) {
	var req models.RoleUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	user, err := h.users.SetRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AdminHandler) Messages(c *gin.Context) {
	msgs, err := h.admin.ListAdminMessages(c.Request.Context(), queryLimit(c, defaultAdminListLimit))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *AdminHandler) Applications(c *gin.Context) {
	apps, err := h.admin.ListPendingApplications(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (h *AdminHandler) ReviewApplication(c *gin.Context) {
	var req models.ApplicationReview
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	app, err := h.admin.ReviewApplication(c.Request.Context(), currentUserID(c), c.Param("userId"), c.Param("appId"), req.Approve)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"application": app})
}

func (h *AdminHandler) Sales(c *gin.Context) {
	sales, err := h.admin.ListSales(c.Request.Context(), queryLimit(c, defaultAdminListLimit))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

// PermissionDenied lists the most recent refused writes.
func (h *AdminHandler) PermissionDenied(c *gin.Context) {
	denied, err := h.diagnostics.List(c.Request.Context(), queryLimit(c, defaultAdminListLimit))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"diagnostics": denied})
}
