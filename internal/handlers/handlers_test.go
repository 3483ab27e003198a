package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/internal/app"
	"storefront-backend/internal/config"
	"storefront-backend/internal/handlers"
	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
	"storefront-backend/internal/services"
)

type fakePayments struct {
	mu       sync.Mutex
	sessions map[string]*models.PaymentSession
	events   map[string]*services.WebhookEvent
	next     int
}

func newFakePayments() *fakePayments {
	return &fakePayments{
		sessions: make(map[string]*models.PaymentSession),
		events:   make(map[string]*services.WebhookEvent),
	}
}

func (p *fakePayments) GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, apierrors.ErrPaymentNotFound
	}
	c := *s
	return &c, nil
}

func (p *fakePayments) CreateSession(ctx context.Context, input *services.CheckoutSessionInput) (*models.PaymentSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	s := &models.PaymentSession{
		ID:            fmt.Sprintf("cs_test_%d", p.next),
		PaymentStatus: models.PaymentStatusUnpaid,
		Metadata:      input.Metadata,
		URL:           "https://checkout.example/pay",
	}
	p.sessions[s.ID] = s
	return s, nil
}

// ParseWebhook treats the signature header as the key of a registered event.
func (p *fakePayments) ParseWebhook(payload []byte, signature string) (*services.WebhookEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	event, ok := p.events[signature]
	if !ok {
		return nil, apierrors.ErrBadRequest.WithMessage("webhook signature verification failed")
	}
	return event, nil
}

func (p *fakePayments) markPaid(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sessionID].PaymentStatus = models.PaymentStatusPaid
}

type nopPresigner struct{}

func (nopPresigner) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://%s.s3.example/%s?ttl=%s", bucket, key, ttl), nil
}

type testServer struct {
	t        *testing.T
	store    *services.MemoryStore
	payments *fakePayments
	app      *app.App
	router   *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          "test-secret",
		JWTExpiry:          time.Hour,
		NonceTTL:           5 * time.Minute,
		DownloadURLTTL:     15 * time.Minute,
		RateLimitPerMin:    1000,
		CheckoutSuccessURL: "https://store.example/success",
		CheckoutCancelURL:  "https://store.example/cart",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := services.NewMemoryStore()
	payments := newFakePayments()

	a := app.New(cfg, store, logger, app.WithPayments(payments, payments), app.WithPresigner(nopPresigner{}))
	hub := handlers.NewWebSocketHub(logger)

	return &testServer{
		t:        t,
		store:    store,
		payments: payments,
		app:      a,
		router:   handlers.NewRouter(cfg, a, hub, logger),
	}
}

func (s *testServer) token(userID string) string {
	s.t.Helper()
	token, err := s.app.JWT.GenerateToken(userID)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) seedUser(id string, role models.Role) {
	s.t.Helper()
	u := models.NewUser(id, time.Now())
	u.Role = role
	require.NoError(s.t, s.store.SaveUser(context.Background(), u))
}

func (s *testServer) seedGame(id string, price float64, status models.GameStatus) {
	s.t.Helper()
	require.NoError(s.t, s.store.SaveGame(context.Background(), &models.Game{
		ID:          id,
		Title:       "Title " + id,
		Price:       price,
		Genres:      []string{"arcade"},
		Status:      status,
		DeveloperID: "0xdev",
		DownloadURL: "s3://builds/" + id + ".zip",
		SubmittedAt: time.Now(),
	}))
}

// do sends a JSON request as userID (anonymous when empty) and decodes the
// JSON response body.
func (s *testServer) do(method, path, userID string, body any) (int, map[string]any) {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(userID))
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodGet, "/api/library", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", body["code"])

	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/library?token="+s.token("0xbuyer"), nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCatalogVisibility(t *testing.T) {
	s := newTestServer(t)
	s.seedGame("live", 5, models.GameStatusApproved)
	s.seedGame("draft", 5, models.GameStatusPending)

	code, body := s.do(http.MethodGet, "/games", "", nil)
	require.Equal(t, http.StatusOK, code)
	games := body["games"].([]any)
	require.Len(t, games, 1)
	assert.Equal(t, "live", games[0].(map[string]any)["id"])

	code, _ = s.do(http.MethodGet, "/games/draft", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/games/draft", "0xdev", nil)
	assert.Equal(t, http.StatusOK, code, "developers see their own drafts")
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	s.seedUser("0xuser", models.RoleUser)
	s.seedUser("0xadmin", models.RoleAdmin)
	s.seedGame("g1", 5, models.GameStatusPending)

	code, body := s.do(http.MethodGet, "/api/admin/games/pending", "0xuser", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body["code"])

	code, body = s.do(http.MethodGet, "/api/admin/games/pending", "0xadmin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["games"], 1)

	code, _ = s.do(http.MethodPost, "/api/admin/games/g1/reject", "0xadmin", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(http.MethodPost, "/api/admin/games/g1/approve", "0xadmin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "approved", body["game"].(map[string]any)["status"])

	code, _ = s.do(http.MethodPut, "/api/admin/users/0xuser/role", "0xadmin", gin.H{"role": "dev"})
	require.Equal(t, http.StatusOK, code)
	role, err := s.app.Users.Role(context.Background(), "0xuser")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDev, role)
}

func TestDeveloperSubmissionDeniedIsDiagnosed(t *testing.T) {
	s := newTestServer(t)
	s.seedUser("0xuser", models.RoleUser)
	s.seedUser("0xadmin", models.RoleAdmin)

	input := gin.H{"title": "Space Goose", "price": 4.99, "genres": []string{"arcade"}}

	code, body := s.do(http.MethodPost, "/api/developer/games", "0xuser", input)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "permission_denied", body["code"])

	code, body = s.do(http.MethodGet, "/api/admin/diagnostics/permission-denied", "0xadmin", nil)
	require.Equal(t, http.StatusOK, code)
	denied := body["diagnostics"].([]any)
	require.Len(t, denied, 1)
	assert.Equal(t, "create", denied[0].(map[string]any)["operation"])

	s.seedUser("0xstudio", models.RoleDev)
	code, body = s.do(http.MethodPost, "/api/developer/games", "0xstudio", input)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "pending", body["game"].(map[string]any)["status"])
}

func TestProfileAndMessages(t *testing.T) {
	s := newTestServer(t)
	s.seedUser("0xadmin", models.RoleAdmin)

	code, _ := s.do(http.MethodGet, "/api/me", "0xnew", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body := s.do(http.MethodPut, "/api/me", "0xnew", gin.H{"displayName": "Ada", "email": "ada@example.com"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ada", body["user"].(map[string]any)["displayName"])

	code, body = s.do(http.MethodGet, "/api/me", "0xnew", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["canPublish"])

	code, _ = s.do(http.MethodPost, "/api/messages", "0xnew", gin.H{"subject": "Hi", "body": "Refund please"})
	require.Equal(t, http.StatusCreated, code)

	code, body = s.do(http.MethodGet, "/api/admin/messages", "0xadmin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["messages"], 1)
}
