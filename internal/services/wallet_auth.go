package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"storefront-backend/internal/metrics"
	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

const challengeTemplate = "Sign this message to log in to the store.\n\nAddress: %s\nNonce: %s"

type WalletAuthService struct {
	nonces   NonceStore
	users    UserStore
	jwt      *JWTService
	nonceTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type WalletAuthOption func(*WalletAuthService)

// WithClock replaces time.Now for challenge expiry checks.
func WithClock(now func() time.Time) WalletAuthOption {
	return func(s *WalletAuthService) {
		s.now = now
	}
}

func NewWalletAuthService(nonces NonceStore, users UserStore, jwt *JWTService, nonceTTL time.Duration, logger *slog.Logger, opts ...WalletAuthOption) *WalletAuthService {
	s := &WalletAuthService{
		nonces:   nonces,
		users:    users,
		jwt:      jwt,
		nonceTTL: nonceTTL,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChallengeMessage is the exact text a wallet signs for a given nonce.
func ChallengeMessage(address, token string) string {
	return fmt.Sprintf(challengeTemplate, address, token)
}

// IssueChallenge stores a fresh nonce for the address, replacing any earlier
// one, and returns the message the wallet must sign.
func (s *WalletAuthService) IssueChallenge(ctx context.Context, address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", apierrors.NewValidationError("address", "must be a hex wallet address")
	}

	token, err := models.GenerateNonceToken()
	if err != nil {
		return "", apierrors.ErrInternal.Wrap(err)
	}

	nonce := &models.Nonce{
		Address:   NormalizeAddress(address),
		Token:     token,
		Message:   ChallengeMessage(address, token),
		CreatedAt: s.now(),
	}

	// The document outlives the login window so a late verify is reported as
	// expired rather than missing.
	if err := s.nonces.SaveNonce(ctx, nonce, s.retention()); err != nil {
		return "", apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to save nonce: %w", err))
	}

	return nonce.Message, nil
}

// VerifySignature checks that signature was produced over the stored
// challenge by address and returns a session token. The challenge is left in
// place; callers remove it with CleanupChallenge.
func (s *WalletAuthService) VerifySignature(ctx context.Context, address, signature string) (string, error) {
	key := NormalizeAddress(address)
	if !common.IsHexAddress(key) {
		return "", apierrors.NewValidationError("address", "must be a hex wallet address")
	}

	nonce, err := s.nonces.GetNonce(ctx, key)
	if errors.Is(err, ErrDocumentNotFound) {
		metrics.WalletLoginsTotal.WithLabelValues("no_challenge").Inc()
		return "", apierrors.ErrChallengeNotFound
	}
	if err != nil {
		return "", apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load nonce: %w", err))
	}

	if nonce.Expired(s.now(), s.nonceTTL) {
		metrics.WalletLoginsTotal.WithLabelValues("expired").Inc()
		return "", apierrors.ErrChallengeExpired
	}

	sig, err := decodeSignature(signature)
	if err != nil {
		metrics.WalletLoginsTotal.WithLabelValues("malformed").Inc()
		return "", apierrors.NewValidationError("signature", err.Error())
	}

	recovered, err := RecoverAddress(nonce.Message, sig)
	if err != nil {
		metrics.WalletLoginsTotal.WithLabelValues("mismatch").Inc()
		return "", apierrors.ErrSignatureMismatch.Wrap(err)
	}
	if !strings.EqualFold(recovered.Hex(), key) {
		metrics.WalletLoginsTotal.WithLabelValues("mismatch").Inc()
		return "", apierrors.ErrSignatureMismatch
	}

	if err := s.ensureUser(ctx, key); err != nil {
		return "", err
	}

	token, err := s.jwt.GenerateToken(key)
	if err != nil {
		return "", apierrors.ErrInternal.Wrap(err)
	}

	metrics.WalletLoginsTotal.WithLabelValues("ok").Inc()
	s.logger.InfoContext(ctx, "wallet login", slog.String("address", key))

	return token, nil
}

// CleanupChallenge removes the stored nonce. Removing a missing nonce is not
// an error.
func (s *WalletAuthService) CleanupChallenge(ctx context.Context, address string) error {
	key := NormalizeAddress(address)
	if key == "" {
		return apierrors.NewValidationError("address", "is required")
	}
	if err := s.nonces.DeleteNonce(ctx, key); err != nil {
		return apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to delete nonce: %w", err))
	}
	return nil
}

func (s *WalletAuthService) ensureUser(ctx context.Context, userID string) error {
	_, err := s.users.GetUser(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDocumentNotFound) {
		return apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to load user: %w", err))
	}

	if err := s.users.SaveUser(ctx, models.NewUser(userID, s.now())); err != nil {
		return apierrors.ErrStoreUnavailable.Wrap(fmt.Errorf("failed to create user: %w", err))
	}
	s.logger.InfoContext(ctx, "user created", slog.String("user_id", userID))
	return nil
}

func (s *WalletAuthService) retention() time.Duration {
	if s.nonceTTL <= 0 {
		return 0
	}
	return 2 * s.nonceTTL
}

func decodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("not hex: %v", err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	return sig, nil
}

// RecoverAddress returns the signer of an EIP-191 personal message.
func RecoverAddress(message string, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}

	sig := make([]byte, len(signature))
	copy(sig, signature)

	// Wallets return V as 27/28; recovery wants 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
