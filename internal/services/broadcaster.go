package services

import (
	"context"
	"log/slog"
	"time"

	"storefront-backend/internal/models"
)

// Broadcaster tells every live mirror of a user that their server-held state
// changed. Delivery is best-effort: failures are logged and never returned.
type Broadcaster struct {
	bus    EventBus
	logger *slog.Logger
}

func NewBroadcaster(bus EventBus, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		bus:    bus,
		logger: logger,
	}
}

func (b *Broadcaster) BroadcastWishlistChanged(ctx context.Context, userID string, gameIDs ...string) {
	b.publish(ctx, &models.UserEvent{
		Type:    models.EventWishlistChanged,
		UserID:  userID,
		GameIDs: gameIDs,
	})
}

func (b *Broadcaster) BroadcastLibraryChanged(ctx context.Context, userID string, gameIDs ...string) {
	b.publish(ctx, &models.UserEvent{
		Type:    models.EventLibraryChanged,
		UserID:  userID,
		GameIDs: gameIDs,
	})
}

func (b *Broadcaster) BroadcastPurchaseCompleted(ctx context.Context, userID, sessionID string, gameIDs []string) {
	b.publish(ctx, &models.UserEvent{
		Type:      models.EventPurchaseCompleted,
		UserID:    userID,
		SessionID: sessionID,
		GameIDs:   gameIDs,
	})
}

func (b *Broadcaster) publish(ctx context.Context, event *models.UserEvent) {
	if b == nil || b.bus == nil {
		return
	}
	event.At = time.Now()
	if err := b.bus.PublishUserEvent(ctx, event); err != nil {
		b.logger.WarnContext(ctx, "failed to publish user event",
			slog.String("type", string(event.Type)),
			slog.String("user_id", event.UserID),
			slog.Any("error", err),
		)
	}
}
