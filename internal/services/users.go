package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

type UserService struct {
	users    UserStore
	messages MessageStore
	logger   *slog.Logger
}

func NewUserService(users UserStore, messages MessageStore, logger *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		messages: messages,
		logger:   logger,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, apierrors.NewNotFoundError("User")
	}
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load user: %w", err))
	}
	return user, nil
}

// Role returns the stored role; unknown users are plain users.
func (s *UserService) Role(ctx context.Context, userID string) (models.Role, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, ErrDocumentNotFound) {
		return models.RoleUser, nil
	}
	if err != nil {
		return "", apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load user: %w", err))
	}
	return user.Role, nil
}

// UpdateProfile completes or edits the profile. The role is never taken from
// the request.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update *models.ProfileUpdate) (*models.User, error) {
	now := time.Now()

	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, ErrDocumentNotFound) {
		user = models.NewUser(userID, now)
	} else if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load user: %w", err))
	}

	user.DisplayName = strings.TrimSpace(update.DisplayName)
	user.Email = strings.TrimSpace(update.Email)
	user.AgeVerified = update.AgeVerified
	user.UpdatedAt = now

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) SetRole(ctx context.Context, userID string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, apierrors.NewValidationError("role", "must be one of user, dev, admin")
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Role = role
	user.UpdatedAt = time.Now()
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "role changed",
		slog.String("user_id", userID),
		slog.String("role", string(role)),
	)
	return user, nil
}

// Apply files a developer application. A user may only have one pending
// application at a time.
func (s *UserService) Apply(ctx context.Context, userID string, req *models.DeveloperApplicationRequest) (*models.DeveloperApplication, error) {
	existing, err := s.messages.ListDeveloperApplications(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list applications: %w", err))
	}
	for _, app := range existing {
		if app.Status == models.ApplicationPending {
			return nil, apierrors.ErrConflict.WithMessage("An application is already pending review")
		}
	}

	app := &models.DeveloperApplication{
		ID:         models.GenerateApplicationID(),
		UserID:     userID,
		StudioName: strings.TrimSpace(req.StudioName),
		Website:    req.Website,
		Pitch:      req.Pitch,
		Status:     models.ApplicationPending,
		CreatedAt:  time.Now(),
	}
	if err := models.Validate(app); err != nil {
		return nil, apierrors.ErrBadRequest.WithDetails(err.Error())
	}
	if err := s.messages.SaveDeveloperApplication(ctx, app); err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to save application: %w", err))
	}

	return app, nil
}

func (s *UserService) ListApplications(ctx context.Context, userID string) ([]*models.DeveloperApplication, error) {
	apps, err := s.messages.ListDeveloperApplications(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list applications: %w", err))
	}
	return apps, nil
}

// SendAdminMessage stores a message from a user to the admins.
func (s *UserService) SendAdminMessage(ctx context.Context, userID string, req *models.AdminMessageRequest) (*models.AdminMessage, error) {
	msg := &models.AdminMessage{
		ID:        models.GenerateMessageID(),
		UserID:    userID,
		Subject:   strings.TrimSpace(req.Subject),
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if err := models.Validate(msg); err != nil {
		return nil, apierrors.ErrBadRequest.WithDetails(err.Error())
	}
	if err := s.messages.SaveAdminMessage(ctx, msg); err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to save message: %w", err))
	}
	return msg, nil
}

func (s *UserService) save(ctx context.Context, user *models.User) error {
	if err := models.Validate(user); err != nil {
		return apierrors.ErrBadRequest.WithDetails(err.Error())
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to save user: %w", err))
	}
	return nil
}
