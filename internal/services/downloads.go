package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"storefront-backend/internal/config"
	apierrors "storefront-backend/internal/pkg/errors"
)

// URLPresigner hands out time-limited GET URLs for stored build artifacts.
type URLPresigner interface {
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

type S3Presigner struct {
	cfg *config.Config

	once   sync.Once
	client *s3.PresignClient
	err    error
}

func NewS3Presigner(cfg *config.Config) *S3Presigner {
	return &S3Presigner{cfg: cfg}
}

func (p *S3Presigner) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	p.once.Do(func() {
		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(p.cfg.S3Region),
		}
		if p.cfg.S3AccessKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				p.cfg.S3AccessKey,
				p.cfg.S3SecretKey,
				"",
			)))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			p.err = fmt.Errorf("failed to load aws config: %w", err)
			return
		}

		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if p.cfg.S3BaseEndpoint != "" {
				o.BaseEndpoint = aws.String(p.cfg.S3BaseEndpoint)
				o.UsePathStyle = true
			}
		})
		p.client = s3.NewPresignClient(client)
	})
	return p.client, p.err
}

func (p *S3Presigner) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	client, err := p.presignClient(ctx)
	if err != nil {
		return "", err
	}

	req, err := client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

type DownloadLink struct {
	GameID    string     `json:"gameId"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// DownloadService gates build downloads on ownership.
type DownloadService struct {
	games        CatalogStore
	entitlements *EntitlementService
	presigner    URLPresigner
	diagnostics  *Diagnostics
	ttl          time.Duration
	logger       *slog.Logger
}

func NewDownloadService(games CatalogStore, entitlements *EntitlementService, presigner URLPresigner, diagnostics *Diagnostics, ttl time.Duration, logger *slog.Logger) *DownloadService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DownloadService{
		games:        games,
		entitlements: entitlements,
		presigner:    presigner,
		diagnostics:  diagnostics,
		ttl:          ttl,
		logger:       logger,
	}
}

// DownloadURL returns a link to the game build for an owner. Ownership
// outlives moderation, so the game's current status is not checked.
func (s *DownloadService) DownloadURL(ctx context.Context, userID, gameID string) (*DownloadLink, error) {
	owned, err := s.entitlements.HasEntitlement(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, s.diagnostics.Deny(ctx, fmt.Sprintf(KeyUserLibrary, userID)+"/"+gameID, "download", userID, nil)
	}

	game, err := s.games.GetGame(ctx, gameID)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, apierrors.NewNotFoundError("Game")
	}
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load game %s: %w", gameID, err))
	}

	ref := game.DownloadURL
	if ref == "" {
		ref = game.RepositoryURL
	}
	if ref == "" {
		return nil, apierrors.NewNotFoundError("Download")
	}

	bucket, key, ok := parseS3Reference(ref)
	if !ok {
		return &DownloadLink{GameID: gameID, URL: ref}, nil
	}

	if s.presigner == nil {
		return nil, apierrors.ErrInternal.WithMessage("Downloads are not configured")
	}
	signed, err := s.presigner.PresignGet(ctx, bucket, key, s.ttl)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.Wrap(err)
	}

	expires := time.Now().Add(s.ttl)
	s.logger.InfoContext(ctx, "download link issued",
		slog.String("user_id", userID),
		slog.String("game_id", gameID),
	)
	return &DownloadLink{GameID: gameID, URL: signed, ExpiresAt: &expires}, nil
}

func parseS3Reference(ref string) (string, string, bool) {
	if !strings.HasPrefix(ref, "s3://") {
		return "", "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", false
	}
	return u.Host, key, true
}
