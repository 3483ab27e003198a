package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/pkg/response"
	"storefront-backend/internal/services"
)

type LibraryHandler struct {
	entitlements    *services.EntitlementService
	downloads       *services.DownloadService
	wishlist        *services.WishlistService
	recommendations *services.RecommendationService
}

func NewLibraryHandler(entitlements *services.EntitlementService, downloads *services.DownloadService, wishlist *services.WishlistService, recommendations *services.RecommendationService) *LibraryHandler {
	return &LibraryHandler{
		entitlements:    entitlements,
		downloads:       downloads,
		wishlist:        wishlist,
		recommendations: recommendations,
	}
}

func (h *LibraryHandler) GetLibrary(c *gin.Context) {
	entries, err := h.entitlements.Library(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"library": entries})
}

func (h *LibraryHandler) Download(c *gin.Context) {
	link, err := h.downloads.DownloadURL(c.Request.Context(), currentUserID(c), c.Param("gameId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

func (h *LibraryHandler) GetWishlist(c *gin.Context) {
	entries, err := h.wishlist.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"wishlist": entries})
}

func (h *LibraryHandler) AddToWishlist(c *gin.Context) {
	if err := h.wishlist.Add(c.Request.Context(), currentUserID(c), c.Param("gameId")); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *LibraryHandler) RemoveFromWishlist(c *gin.Context) {
	if err := h.wishlist.Remove(c.Request.Context(), currentUserID(c), c.Param("gameId")); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *LibraryHandler) Recommendations(c *gin.Context) {
	recs, err := h.recommendations.Recommend(c.Request.Context(), currentUserID(c), int(queryLimit(c, services.DefaultRecommendations)))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}
