package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

type CatalogService struct {
	games        CatalogStore
	users        UserStore
	entitlements *EntitlementService
	diagnostics  *Diagnostics
	logger       *slog.Logger
}

func NewCatalogService(games CatalogStore, users UserStore, entitlements *EntitlementService, diagnostics *Diagnostics, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		games:        games,
		users:        users,
		entitlements: entitlements,
		diagnostics:  diagnostics,
		logger:       logger,
	}
}

// CanPublish reports whether the user may submit games: developers and admins
// always can, other users once they own the developer upgrade.
func (s *CatalogService) CanPublish(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrDocumentNotFound) {
		return false, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load user: %w", err))
	}
	if user != nil && user.Role.CanPublish() {
		return true, nil
	}
	return s.entitlements.DeveloperToolsUnlocked(ctx, userID)
}

func (s *CatalogService) Submit(ctx context.Context, devID string, input *models.GameInput) (*models.Game, error) {
	allowed, err := s.CanPublish(ctx, devID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, s.diagnostics.Deny(ctx, "games", "create", devID, input)
	}

	now := time.Now()
	game := &models.Game{
		ID:          models.GenerateGameID(),
		DeveloperID: devID,
		Status:      models.GameStatusPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	applyGameInput(game, input)

	if err := s.save(ctx, game); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "game submitted",
		slog.String("game_id", game.ID),
		slog.String("developer_id", devID),
	)
	return game, nil
}

// Update replaces the developer-editable fields and sends the game back to
// review.
func (s *CatalogService) Update(ctx context.Context, devID, gameID string, input *models.GameInput) (*models.Game, error) {
	game, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.DeveloperID != devID {
		return nil, s.diagnostics.Deny(ctx, fmt.Sprintf(KeyGame, gameID), "update", devID, input)
	}

	applyGameInput(game, input)
	game.Status = models.GameStatusPending
	game.RejectionReason = ""
	game.UpdatedAt = time.Now()

	if err := s.save(ctx, game); err != nil {
		return nil, err
	}
	return game, nil
}

func (s *CatalogService) Approve(ctx context.Context, gameID string) (*models.Game, error) {
	game, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}

	game.Status = models.GameStatusApproved
	game.RejectionReason = ""
	game.UpdatedAt = time.Now()

	if err := s.save(ctx, game); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "game approved", slog.String("game_id", gameID))
	return game, nil
}

func (s *CatalogService) Reject(ctx context.Context, gameID, reason string) (*models.Game, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apierrors.NewValidationError("reason", "is required")
	}

	game, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}

	game.Status = models.GameStatusRejected
	game.RejectionReason = reason
	game.UpdatedAt = time.Now()

	if err := s.save(ctx, game); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "game rejected",
		slog.String("game_id", gameID),
		slog.String("reason", reason),
	)
	return game, nil
}

// Get returns a game. Games that are not approved are only visible to their
// developer and to admins.
func (s *CatalogService) Get(ctx context.Context, viewerID, gameID string) (*models.Game, error) {
	game, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status == models.GameStatusApproved || (viewerID != "" && game.DeveloperID == viewerID) {
		return game, nil
	}
	if viewerID != "" {
		if user, err := s.users.GetUser(ctx, viewerID); err == nil && user.Role == models.RoleAdmin {
			return game, nil
		}
	}
	return nil, apierrors.NewNotFoundError("Game")
}

// ListApproved returns the public catalog sorted by title, optionally
// narrowed to one genre.
func (s *CatalogService) ListApproved(ctx context.Context, genre string) ([]*models.Game, error) {
	return s.list(ctx, func(g *models.Game) bool {
		return g.Status == models.GameStatusApproved && (genre == "" || g.HasGenre(genre))
	}, byTitle)
}

func (s *CatalogService) ListPending(ctx context.Context) ([]*models.Game, error) {
	return s.list(ctx, func(g *models.Game) bool {
		return g.Status == models.GameStatusPending
	}, bySubmittedAt)
}

func (s *CatalogService) ListByDeveloper(ctx context.Context, devID string) ([]*models.Game, error) {
	return s.list(ctx, func(g *models.Game) bool {
		return g.DeveloperID == devID
	}, bySubmittedAt)
}

func (s *CatalogService) list(ctx context.Context, keep func(*models.Game) bool, less func(a, b *models.Game) bool) ([]*models.Game, error) {
	all, err := s.games.ListGames(ctx)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to list games: %w", err))
	}

	out := make([]*models.Game, 0, len(all))
	for _, g := range all {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

func (s *CatalogService) load(ctx context.Context, gameID string) (*models.Game, error) {
	game, err := s.games.GetGame(ctx, gameID)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, apierrors.NewNotFoundError("Game")
	}
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load game %s: %w", gameID, err))
	}
	return game, nil
}

func (s *CatalogService) save(ctx context.Context, game *models.Game) error {
	if err := models.Validate(game); err != nil {
		return apierrors.ErrBadRequest.WithDetails(err.Error())
	}
	if err := s.games.SaveGame(ctx, game); err != nil {
		return apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to save game %s: %w", game.ID, err))
	}
	return nil
}

func applyGameInput(game *models.Game, input *models.GameInput) {
	game.Title = strings.TrimSpace(input.Title)
	game.Price = input.Price
	game.Description = input.Description
	game.Genres = input.Genres
	game.Images = input.Images
	game.DownloadURL = input.DownloadURL
	game.RepositoryURL = input.RepositoryURL
}

func byTitle(a, b *models.Game) bool {
	if a.Title == b.Title {
		return a.ID < b.ID
	}
	return strings.ToLower(a.Title) < strings.ToLower(b.Title)
}

func bySubmittedAt(a, b *models.Game) bool {
	return a.SubmittedAt.Before(b.SubmittedAt)
}
