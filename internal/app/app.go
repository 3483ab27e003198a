// Package app wires the storefront services on top of one document store so
// the API server and storectl run the same code paths.
package app

import (
	"log/slog"

	"storefront-backend/internal/config"
	"storefront-backend/internal/services"
)

type App struct {
	Store    services.Store
	Payments services.PaymentProvider
	Webhooks services.WebhookVerifier

	JWT             *services.JWTService
	Wallet          *services.WalletAuthService
	Users           *services.UserService
	Entitlements    *services.EntitlementService
	Catalog         *services.CatalogService
	Checkout        *services.CheckoutService
	Reconciler      *services.Reconciler
	Downloads       *services.DownloadService
	Wishlist        *services.WishlistService
	Recommendations *services.RecommendationService
	Admin           *services.AdminService
	Diagnostics     *services.Diagnostics
	Broadcaster     *services.Broadcaster
}

// Option overrides one of the external integrations, mostly for tests.
type Option func(*options)

type options struct {
	payments  services.PaymentProvider
	webhooks  services.WebhookVerifier
	presigner services.URLPresigner
}

func WithPayments(p services.PaymentProvider, w services.WebhookVerifier) Option {
	return func(o *options) {
		o.payments = p
		o.webhooks = w
	}
}

func WithPresigner(p services.URLPresigner) Option {
	return func(o *options) {
		o.presigner = p
	}
}

func New(cfg *config.Config, store services.Store, logger *slog.Logger, opts ...Option) *App {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.payments == nil {
		stripe := services.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		o.payments = stripe
		o.webhooks = stripe
	}
	if o.presigner == nil {
		o.presigner = services.NewS3Presigner(cfg)
	}

	a := &App{
		Store:    store,
		Payments: o.payments,
		Webhooks: o.webhooks,
	}

	a.JWT = services.NewJWTService(cfg)
	a.Wallet = services.NewWalletAuthService(store, store, a.JWT, cfg.NonceTTL, logger)
	a.Broadcaster = services.NewBroadcaster(store, logger)
	a.Diagnostics = services.NewDiagnostics(store, logger)
	a.Users = services.NewUserService(store, store, logger)
	a.Entitlements = services.NewEntitlementService(store, cfg.DeveloperUpgradeGameID, a.Broadcaster)
	a.Catalog = services.NewCatalogService(store, store, a.Entitlements, a.Diagnostics, logger)
	a.Checkout = services.NewCheckoutService(cfg, a.Payments, store, a.Entitlements, logger)
	a.Reconciler = services.NewReconciler(services.ReconcilerConfig{
		Provider:         a.Payments,
		Sales:            store,
		Wishlist:         store,
		Users:            store,
		Broadcaster:      a.Broadcaster,
		DeveloperProduct: cfg.DeveloperUpgradeGameID,
		Logger:           logger,
	})
	a.Downloads = services.NewDownloadService(store, a.Entitlements, o.presigner, a.Diagnostics, cfg.DownloadURLTTL, logger)
	a.Wishlist = services.NewWishlistService(store, store, store, a.Broadcaster)
	a.Recommendations = services.NewRecommendationService(a.Catalog, store, store)
	a.Admin = services.NewAdminService(a.Users, store, store, logger)

	return a
}

// OpenStore connects the backend named by STORE_BACKEND.
func OpenStore(cfg *config.Config, logger *slog.Logger) (services.Store, error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return services.NewMemoryStore(), nil
	}
	redis, err := services.NewRedisService(cfg, logger)
	if err != nil {
		return nil, err
	}
	return redis, nil
}
