package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
	"storefront-backend/internal/pkg/response"
	"storefront-backend/internal/services"
)

type DeveloperHandler struct {
	catalog *services.CatalogService
	users   *services.UserService
}

func NewDeveloperHandler(catalog *services.CatalogService, users *services.UserService) *DeveloperHandler {
	return &DeveloperHandler{
		catalog: catalog,
		users:   users,
	}
}

func (h *DeveloperHandler) Apply(c *gin.Context) {
	var req models.DeveloperApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	app, err := h.users.Apply(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"application": app})
}

func (h *DeveloperHandler) ListApplications(c *gin.Context) {
	apps, err := h.users.ListApplications(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (h *DeveloperHandler) ListGames(c *gin.Context) {
	games, err := h.catalog.ListByDeveloper(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (h *DeveloperHandler) CreateGame(c *gin.Context) {
	var input models.GameInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, err)
		return
	}

	game, err := h.catalog.Submit(c.Request.Context(), currentUserID(c), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"game": game})
}

func (h *DeveloperHandler) UpdateGame(c *gin.Context) {
	var input models.GameInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, err)
		return
	}

	game, err := h.catalog.Update(c.Request.Context(), currentUserID(c), c.Param("id"), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}
