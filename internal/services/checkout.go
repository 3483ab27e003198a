package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"storefront-backend/internal/config"
	"storefront-backend/internal/metrics"
	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

type CheckoutService struct {
	provider     PaymentProvider
	catalog      CatalogStore
	entitlements *EntitlementService
	successURL   string
	cancelURL    string
	logger       *slog.Logger
}

func NewCheckoutService(cfg *config.Config, provider PaymentProvider, catalog CatalogStore, entitlements *EntitlementService, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		provider:     provider,
		catalog:      catalog,
		entitlements: entitlements,
		successURL:   cfg.CheckoutSuccessURL,
		cancelURL:    cfg.CheckoutCancelURL,
		logger:       logger,
	}
}

// CreateCheckoutSession opens a hosted checkout for the cart. Prices come from
// the catalog, not from the client, and are frozen into the session metadata
// for the reconciler.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, authUserID string, req *models.CheckoutRequest) (*models.PaymentSession, error) {
	if len(req.CartItems) == 0 {
		return nil, apierrors.ErrEmptyCart
	}
	if req.UserID == "" {
		return nil, apierrors.ErrUnauthorized.WithMessage("userId is required")
	}
	if req.UserID != authUserID {
		return nil, apierrors.ErrForbidden.WithMessage("cannot check out for another user")
	}

	seen := make(map[string]struct{}, len(req.CartItems))
	lines := make([]CheckoutLine, 0, len(req.CartItems))
	items := make([]models.LineItem, 0, len(req.CartItems))

	for _, cartItem := range req.CartItems {
		if cartItem.ID == "" {
			return nil, apierrors.NewValidationError("cartItems", "every item needs an id")
		}
		if _, dup := seen[cartItem.ID]; dup {
			continue
		}
		seen[cartItem.ID] = struct{}{}

		game, err := s.catalog.GetGame(ctx, cartItem.ID)
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, apierrors.NewNotFoundError("Game").WithDetails(map[string]string{"gameId": cartItem.ID})
		}
		if err != nil {
			return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load game %s: %w", cartItem.ID, err))
		}
		if game.Status != models.GameStatusApproved {
			return nil, apierrors.NewValidationError("cartItems", fmt.Sprintf("game %s is not for sale", game.ID))
		}

		owned, err := s.entitlements.HasEntitlement(ctx, authUserID, game.ID)
		if err != nil {
			return nil, err
		}
		if owned {
			return nil, apierrors.ErrConflict.WithMessage("Game already in library").WithDetails(map[string]string{"gameId": game.ID})
		}

		lines = append(lines, CheckoutLine{GameID: game.ID, Title: game.Title, Price: game.Price})
		items = append(items, models.LineItem{GameID: game.ID, Price: game.Price})
	}

	gamePrices, err := models.EncodeGamePrices(items)
	if err != nil {
		return nil, apierrors.ErrInternal.Wrap(err)
	}

	session, err := s.provider.CreateSession(ctx, &CheckoutSessionInput{
		UserID: authUserID,
		Lines:  lines,
		Metadata: map[string]string{
			models.MetadataUserID:     authUserID,
			models.MetadataGamePrices: gamePrices,
		},
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		if apierrors.IsAPIError(err) {
			return nil, err
		}
		return nil, apierrors.ErrPaymentProvider.Wrap(err)
	}

	metrics.CheckoutSessionsCreated.Inc()
	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", session.ID),
		slog.String("user_id", authUserID),
		slog.Int("items", len(items)),
	)

	return session, nil
}

// VerifySession returns the provider's view of a session owned by the caller.
func (s *CheckoutService) VerifySession(ctx context.Context, authUserID, sessionID string) (*models.PaymentSession, error) {
	if sessionID == "" {
		return nil, apierrors.NewValidationError("sessionId", "is required")
	}

	session, err := s.provider.GetSession(ctx, sessionID)
	if err != nil {
		if apierrors.IsAPIError(err) {
			return nil, err
		}
		return nil, apierrors.ErrPaymentProvider.Wrap(err)
	}

	if owner := session.Metadata[models.MetadataUserID]; owner != "" && owner != authUserID {
		return nil, apierrors.ErrForbidden
	}
	return session, nil
}
