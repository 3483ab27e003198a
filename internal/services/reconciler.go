package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storefront-backend/internal/metrics"
	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

// Reconciler turns a paid checkout session into library entries and sale
// records. Running it any number of times for the same session leaves the
// same state as running it once.
type Reconciler struct {
	provider         PaymentProvider
	sales            SaleStore
	wishlist         WishlistStore
	users            UserStore
	broadcaster      *Broadcaster
	developerProduct string
	logger           *slog.Logger
	now              func() time.Time
}

type ReconcilerConfig struct {
	Provider    PaymentProvider
	Sales       SaleStore
	Wishlist    WishlistStore
	Users       UserStore
	Broadcaster *Broadcaster
	// DeveloperProduct is the game id whose purchase promotes a user to dev.
	DeveloperProduct string
	Logger           *slog.Logger
}

func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		provider:         cfg.Provider,
		sales:            cfg.Sales,
		wishlist:         cfg.Wishlist,
		users:            cfg.Users,
		broadcaster:      cfg.Broadcaster,
		developerProduct: cfg.DeveloperProduct,
		logger:           logger,
		now:              time.Now,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, sessionID string) (*models.ReconcileResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apierrors.NewValidationError("sessionId", "is required")
	}

	session, err := r.provider.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apierrors.ErrPaymentNotFound) {
			metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
			return nil, err
		}
		if apierrors.IsAPIError(err) {
			return nil, err
		}
		return nil, apierrors.ErrPaymentProvider.Wrap(err)
	}

	if !session.Paid() {
		metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeNotPaid).Inc()
		return nil, apierrors.ErrPaymentNotCompleted.WithDetails(paymentStatusDetails(session.PaymentStatus))
	}

	userID, items, err := session.Purchase()
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeMalformed).Inc()
		r.logger.ErrorContext(ctx, "malformed session metadata",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		return nil, apierrors.ErrMalformedSessionMetadata.Wrap(err).WithDetails(err.Error())
	}

	batch := &models.PurchaseBatch{
		SessionID: session.ID,
		UserID:    userID,
		Items:     items,
		At:        r.now(),
	}

	commit, err := r.sales.CommitPurchase(ctx, batch)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeStoreFailure).Inc()
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to commit purchase %s: %w", session.ID, err))
	}

	gameIDs := make([]string, 0, len(items))
	for _, item := range items {
		gameIDs = append(gameIDs, item.GameID)
	}

	r.removeFromWishlist(ctx, userID, gameIDs)
	r.promoteDeveloper(ctx, userID, gameIDs)
	r.broadcaster.BroadcastPurchaseCompleted(ctx, userID, session.ID, gameIDs)

	result := &models.ReconcileResult{
		SessionID:    session.ID,
		UserID:       userID,
		Games:        gameIDs,
		Granted:      nonNil(commit.Granted),
		AlreadyOwned: nonNil(commit.AlreadyOwned),
		SalesWritten: commit.SalesWritten,
		Duplicate:    commit.SalesWritten == 0,
	}

	metrics.EntitlementsGranted.Add(float64(len(result.Granted)))
	metrics.SalesRecorded.Add(float64(result.SalesWritten))
	if result.Duplicate {
		metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
	} else {
		metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeGranted).Inc()
	}

	r.logger.InfoContext(ctx, "purchase reconciled",
		slog.String("session_id", session.ID),
		slog.String("user_id", userID),
		slog.Int("granted", len(result.Granted)),
		slog.Int("sales_written", result.SalesWritten),
		slog.Bool("duplicate", result.Duplicate),
	)

	return result, nil
}

func (r *Reconciler) removeFromWishlist(ctx context.Context, userID string, gameIDs []string) {
	for _, gameID := range gameIDs {
		if err := r.wishlist.RemoveFromWishlist(ctx, userID, gameID); err != nil {
			r.logger.WarnContext(ctx, "failed to remove purchased game from wishlist",
				slog.String("user_id", userID),
				slog.String("game_id", gameID),
				slog.Any("error", err),
			)
		}
	}
}

func (r *Reconciler) promoteDeveloper(ctx context.Context, userID string, gameIDs []string) {
	if r.developerProduct == "" || r.users == nil || !contains(gameIDs, r.developerProduct) {
		return
	}

	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		r.logger.WarnContext(ctx, "developer upgrade skipped",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return
	}
	if user.Role != models.RoleUser {
		return
	}

	user.Role = models.RoleDev
	user.UpdatedAt = r.now()
	if err := r.users.SaveUser(ctx, user); err != nil {
		r.logger.WarnContext(ctx, "failed to promote user to developer",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return
	}
	r.logger.InfoContext(ctx, "user promoted to developer", slog.String("user_id", userID))
}

func paymentStatusDetails(status models.PaymentStatus) map[string]string {
	return map[string]string{"paymentStatus": string(status)}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
