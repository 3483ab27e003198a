package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
	"storefront-backend/internal/services"
)

var fixedTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider is an in-memory payment provider keyed by session id.
type fakeProvider struct {
	mu       sync.Mutex
	sessions map[string]*models.PaymentSession
	created  []*services.CheckoutSessionInput
	getErr   error
	calls    int
}

func newFakeProvider(sessions ...*models.PaymentSession) *fakeProvider {
	p := &fakeProvider{sessions: make(map[string]*models.PaymentSession)}
	for _, s := range sessions {
		p.sessions[s.ID] = s
	}
	return p
}

func (p *fakeProvider) GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.getErr != nil {
		return nil, p.getErr
	}
	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, apierrors.ErrPaymentNotFound
	}
	c := *s
	return &c, nil
}

func (p *fakeProvider) CreateSession(ctx context.Context, input *services.CheckoutSessionInput) (*models.PaymentSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, input)
	s := &models.PaymentSession{
		ID:            "cs_test_" + input.UserID,
		PaymentStatus: models.PaymentStatusUnpaid,
		Metadata:      input.Metadata,
		URL:           "https://checkout.example/cs_test",
	}
	p.sessions[s.ID] = s
	return s, nil
}

// flakyWishlistStore fails every wishlist removal.
type flakyWishlistStore struct {
	*services.MemoryStore
}

func (f *flakyWishlistStore) RemoveFromWishlist(ctx context.Context, userID, gameID string) error {
	return errors.New("wishlist write refused")
}

// failingSaleStore refuses commits while fail is set and otherwise defers to
// the wrapped store.
type failingSaleStore struct {
	*services.MemoryStore
	mu      sync.Mutex
	fail    bool
	commits int
}

func (f *failingSaleStore) CommitPurchase(ctx context.Context, batch *models.PurchaseBatch) (*models.PurchaseCommit, error) {
	f.mu.Lock()
	f.commits++
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return f.MemoryStore.CommitPurchase(ctx, batch)
}

func (f *failingSaleStore) restore() {
	f.mu.Lock()
	f.fail = false
	f.mu.Unlock()
}

func paidSession(id, userID, gamePrices string) *models.PaymentSession {
	return &models.PaymentSession{
		ID:            id,
		PaymentStatus: models.PaymentStatusPaid,
		Metadata: map[string]string{
			models.MetadataUserID:     userID,
			models.MetadataGamePrices: gamePrices,
		},
	}
}

func seedGame(t *testing.T, store services.CatalogStore, id string, price float64, status models.GameStatus, genres ...string) *models.Game {
	t.Helper()
	if len(genres) == 0 {
		genres = []string{"arcade"}
	}
	g := &models.Game{
		ID:          id,
		Title:       "Title " + id,
		Price:       price,
		Genres:      genres,
		Status:      status,
		DeveloperID: "0xdev",
		SubmittedAt: time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, store.SaveGame(context.Background(), g))
	return g
}

func seedUser(t *testing.T, store services.UserStore, id string, role models.Role) *models.User {
	t.Helper()
	u := models.NewUser(id, time.Now())
	u.Role = role
	require.NoError(t, store.SaveUser(context.Background(), u))
	return u
}
