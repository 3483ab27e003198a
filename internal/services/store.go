package services

import (
	"context"
	"errors"
	"time"

	"storefront-backend/internal/models"
)

var ErrDocumentNotFound = errors.New("document not found")

type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

type CatalogStore interface {
	GetGame(ctx context.Context, gameID string) (*models.Game, error)
	SaveGame(ctx context.Context, game *models.Game) error
	ListGames(ctx context.Context) ([]*models.Game, error)
}

type EntitlementStore interface {
	HasEntitlement(ctx context.Context, userID, gameID string) (bool, error)
	// GrantEntitlement inserts the entry unless one already exists for the
	// (user, game) pair and reports whether it did.
	GrantEntitlement(ctx context.Context, entry *models.LibraryEntry) (bool, error)
	ListEntitlements(ctx context.Context, userID string) ([]*models.LibraryEntry, error)
}

type WishlistStore interface {
	AddToWishlist(ctx context.Context, entry *models.WishlistEntry) error
	RemoveFromWishlist(ctx context.Context, userID, gameID string) error
	ListWishlist(ctx context.Context, userID string) ([]*models.WishlistEntry, error)
}

type SaleStore interface {
	// CommitPurchase writes every entitlement and sale record of the batch
	// atomically. Rows that already exist are left untouched.
	CommitPurchase(ctx context.Context, batch *models.PurchaseBatch) (*models.PurchaseCommit, error)
	ListSales(ctx context.Context, limit int64) ([]*models.SaleRecord, error)
}

type NonceStore interface {
	SaveNonce(ctx context.Context, nonce *models.Nonce, ttl time.Duration) error
	GetNonce(ctx context.Context, address string) (*models.Nonce, error)
	DeleteNonce(ctx context.Context, address string) error
}

type MessageStore interface {
	SaveAdminMessage(ctx context.Context, msg *models.AdminMessage) error
	ListAdminMessages(ctx context.Context, limit int64) ([]*models.AdminMessage, error)
	SaveDeveloperApplication(ctx context.Context, app *models.DeveloperApplication) error
	GetDeveloperApplication(ctx context.Context, userID, appID string) (*models.DeveloperApplication, error)
	ListDeveloperApplications(ctx context.Context, userID string) ([]*models.DeveloperApplication, error)
	ListPendingDeveloperApplications(ctx context.Context) ([]*models.DeveloperApplication, error)
}

type EventBus interface {
	PublishUserEvent(ctx context.Context, event *models.UserEvent) error
	// SubscribeUserEvents streams events for one user until the returned
	// cancel func is called or ctx ends.
	SubscribeUserEvents(ctx context.Context, userID string) (<-chan *models.UserEvent, func(), error)
}

type DiagnosticsStore interface {
	RecordPermissionDenied(ctx context.Context, d *models.PermissionDiagnostic) error
	ListPermissionDenied(ctx context.Context, limit int64) ([]*models.PermissionDiagnostic, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error)
}

// Store is the full document store the API process runs against.
type Store interface {
	UserStore
	CatalogStore
	EntitlementStore
	WishlistStore
	SaleStore
	NonceStore
	MessageStore
	EventBus
	DiagnosticsStore
	RateLimiter

	Ping(ctx context.Context) error
	Close() error
}
