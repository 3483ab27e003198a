package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

type AdminService struct {
	users    *UserService
	messages MessageStore
	sales    SaleStore
	logger   *slog.Logger
}

func NewAdminService(users *UserService, messages MessageStore, sales SaleStore, logger *slog.Logger) *AdminService {
	return &AdminService{
		users:    users,
		messages: messages,
		sales:    sales,
		logger:   logger,
	}
}

func (s *AdminService) ListAdminMessages(ctx context.Context, limit int64) ([]*models.AdminMessage, error) {
	msgs, err := s.messages.ListAdminMessages(ctx, limit)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list messages: %w", err))
	}
	return msgs, nil
}

func (s *AdminService) ListPendingApplications(ctx context.Context) ([]*models.DeveloperApplication, error) {
	apps, err := s.messages.ListPendingDeveloperApplications(ctx)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list applications: %w", err))
	}
	return apps, nil
}

// ReviewApplication closes a pending application. Approval promotes the
// applicant to developer unless they are already an admin.
func (s *AdminService) ReviewApplication(ctx context.Context, adminID, userID, appID string, approve bool) (*models.DeveloperApplication, error) {
	app, err := s.messages.GetDeveloperApplication(ctx, userID, appID)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, apierrors.NewNotFoundError("Application")
	}
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load application: %w", err))
	}
	if app.Status != models.ApplicationPending {
		return nil, apierrors.ErrConflict.WithMessage("Application already reviewed")
	}

	now := time.Now()
	app.ReviewedAt = &now
	app.ReviewedBy = adminID
	app.Status = models.ApplicationRejected
	if approve {
		app.Status = models.ApplicationApproved
	}

	if err := s.messages.SaveDeveloperApplication(ctx, app); err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to save application: %w", err))
	}

	if approve {
		role, err := s.users.Role(ctx, userID)
		if err != nil {
			return nil, err
		}
		if role == models.RoleUser {
			if _, err := s.users.SetRole(ctx, userID, models.RoleDev); err != nil {
				return nil, err
			}
		}
	}

	s.logger.InfoContext(ctx, "developer application reviewed",
		slog.String("application_id", appID),
		slog.String("user_id", userID),
		slog.String("status", string(app.Status)),
		slog.String("admin_id", adminID),
	)
	return app, nil
}

func (s *AdminService) ListSales(ctx context.Context, limit int64) ([]*models.SaleRecord, error) {
	sales, err := s.sales.ListSales(ctx, limit)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list sales: %w", err))
	}
	return sales, nil
}
