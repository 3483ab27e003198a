package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storefront-backend/internal/metrics"
	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

// Diagnostics records refused writes so access rules can be debugged after
// the fact. Recording never fails the caller.
type Diagnostics struct {
	store  DiagnosticsStore
	logger *slog.Logger
}

func NewDiagnostics(store DiagnosticsStore, logger *slog.Logger) *Diagnostics {
	return &Diagnostics{store: store, logger: logger}
}

// Deny records the refused operation and returns the error to hand back to
// the client.
func (d *Diagnostics) Deny(ctx context.Context, path, operation, userID string, payload any) error {
	denied := &apierrors.PermissionDeniedError{
		Path:      path,
		Operation: operation,
		UserID:    userID,
		Payload:   payload,
	}
	d.Report(ctx, denied)
	return denied
}

func (d *Diagnostics) Report(ctx context.Context, denied *apierrors.PermissionDeniedError) {
	metrics.PermissionDeniedTotal.WithLabelValues(denied.Operation).Inc()

	if d == nil {
		return
	}

	d.logger.WarnContext(ctx, "permission denied",
		slog.String("path", denied.Path),
		slog.String("operation", denied.Operation),
		slog.String("user_id", denied.UserID),
		slog.Any("payload", denied.Payload),
	)

	if d.store == nil {
		return
	}
	err := d.store.RecordPermissionDenied(ctx, &models.PermissionDiagnostic{
		Path:      denied.Path,
		Operation: denied.Operation,
		UserID:    denied.UserID,
		Payload:   denied.Payload,
		At:        time.Now(),
	})
	if err != nil {
		d.logger.WarnContext(ctx, "failed to record permission diagnostic", slog.Any("error", err))
	}
}

func (d *Diagnostics) List(ctx context.Context, limit int64) ([]*models.PermissionDiagnostic, error) {
	out, err := d.store.ListPermissionDenied(ctx, limit)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list diagnostics: %w", err))
	}
	return out, nil
}
