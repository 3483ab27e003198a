package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront-backend/internal/app"
	"storefront-backend/internal/config"
	"storefront-backend/internal/middleware"
	"storefront-backend/internal/models"
)

// NewRouter mounts every HTTP route of the storefront API.
func NewRouter(cfg *config.Config, a *app.App, hub *WebSocketHub, logger *slog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authHandler := NewAuthHandler(a.Wallet)
	userHandler := NewUserHandler(a.Users, a.Entitlements)
	catalogHandler := NewCatalogHandler(a.Catalog)
	checkoutHandler := NewCheckoutHandler(a.Checkout, a.Reconciler, a.Webhooks, logger)
	libraryHandler := NewLibraryHandler(a.Entitlements, a.Downloads, a.Wishlist, a.Recommendations)
	developerHandler := NewDeveloperHandler(a.Catalog, a.Users)
	adminHandler := NewAdminHandler(a.Catalog, a.Users, a.Admin, a.Diagnostics, hub)
	wsHandler := NewWebSocketHandler(a.Catalog, a.Entitlements, a.Wishlist, a.Store, hub, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS())

	router.GET("/healthz", healthHandler(a))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth/wallet")
	{
		auth.POST("/nonce", authHandler.Nonce)
		auth.POST("/verify", authHandler.Verify)
		auth.POST("/cleanup", authHandler.Cleanup)
	}

	router.POST("/webhooks/stripe", checkoutHandler.StripeWebhook)

	games := router.Group("/games")
	games.Use(middleware.OptionalAuth(a.JWT))
	{
		games.GET("", catalogHandler.ListGames)
		games.GET("/:id", catalogHandler.GetGame)
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(a.JWT))
	protected.Use(middleware.RateLimitMiddleware(a.Store, cfg.RateLimitPerMin))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.PUT("/me", userHandler.UpdateProfile)
		protected.POST("/messages", userHandler.SendMessage)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		protected.POST("/checkout/session", checkoutHandler.CreateSession)
		protected.POST("/checkout/verify", checkoutHandler.VerifySession)
		protected.POST("/purchases/reconcile", checkoutHandler.Reconcile)

		protected.GET("/library", libraryHandler.GetLibrary)
		protected.GET("/library/:gameId/download", libraryHandler.Download)
		protected.GET("/recommendations", libraryHandler.Recommendations)

		wishlist := protected.Group("/wishlist")
		{
			wishlist.GET("", libraryHandler.GetWishlist)
			wishlist.POST("/:gameId", libraryHandler.AddToWishlist)
			wishlist.DELETE("/:gameId", libraryHandler.RemoveFromWishlist)
		}

		developer := protected.Group("/developer")
		{
			developer.POST("/applications", developerHandler.Apply)
			developer.GET("/applications", developerHandler.ListApplications)
			developer.GET("/games", developerHandler.ListGames)
			developer.POST("/games", developerHandler.CreateGame)
			developer.PUT("/games/:id", developerHandler.UpdateGame)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole(a.Users, models.RoleAdmin))
		{
			admin.GET("/games/pending", adminHandler.PendingGames)
			admin.POST("/games/:id/approve", adminHandler.ApproveGame)
			admin.POST("/games/:id/reject", adminHandler.RejectGame)
			admin.PUT("/users/:id/role", adminHandler.SetRole)
			admin.GET("/messages", adminHandler.Messages)
			admin.GET("/applications", adminHandler.Applications)
			admin.POST("/applications/:userId/:appId", adminHandler.ReviewApplication)
			admin.GET("/sales", adminHandler.Sales)
			admin.GET("/diagnostics/permission-denied", adminHandler.PermissionDenied)
		}
	}

	return router
}

func healthHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := a.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
