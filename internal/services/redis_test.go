package services_test

import (
	"context"
	"testing"
	"time"

	"storefront-backend/internal/config"
	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

func setupTestRedis(t *testing.T) *services.RedisService {
	cfg := &config.Config{
		RedisURL:  "localhost:6379",
		RedisPass: "",
		RedisDB:   0,
	}

	redisService, err := services.NewRedisService(cfg, testLogger())
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { redisService.Close() })
	return redisService
}

func TestRedisService(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx := context.Background()

	userID := "0xtest_redis_user"
	gameID := "test_redis_game"
	defer cleanupTestData(t, redisService, userID, gameID, "test_sess_1")

	user := models.NewUser(userID, time.Now())
	if err := redisService.SaveUser(ctx, user); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}

	retrieved, err := redisService.GetUser(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if retrieved.Role != models.RoleUser {
		t.Errorf("Expected role %q, got %q", models.RoleUser, retrieved.Role)
	}

	if err := redisService.SaveUser(ctx, &models.User{ID: userID}); err == nil {
		t.Error("User without role should be rejected at the store boundary")
	}

	if err := redisService.AddToWishlist(ctx, &models.WishlistEntry{UserID: userID, GameID: gameID, AddedAt: time.Now()}); err != nil {
		t.Fatalf("Failed to add to wishlist: %v", err)
	}

	batch := &models.PurchaseBatch{
		SessionID: "test_sess_1",
		UserID:    userID,
		Items:     []models.LineItem{{GameID: gameID, Price: 10}},
		At:        time.Now(),
	}

	commit, err := redisService.CommitPurchase(ctx, batch)
	if err != nil {
		t.Fatalf("Failed to commit purchase: %v", err)
	}
	if len(commit.Granted) != 1 || commit.SalesWritten != 1 {
		t.Errorf("Expected one grant and one sale, got %+v", commit)
	}

	commit, err = redisService.CommitPurchase(ctx, batch)
	if err != nil {
		t.Fatalf("Failed to recommit purchase: %v", err)
	}
	if len(commit.Granted) != 0 || len(commit.AlreadyOwned) != 1 || commit.SalesWritten != 0 {
		t.Errorf("Recommit should write nothing, got %+v", commit)
	}

	owned, err := redisService.HasEntitlement(ctx, userID, gameID)
	if err != nil {
		t.Fatalf("Failed to check entitlement: %v", err)
	}
	if !owned {
		t.Error("Expected entitlement after commit")
	}

	created, err := redisService.GrantEntitlement(ctx, &models.LibraryEntry{UserID: userID, GameID: gameID, PriceAtPurchase: 99, PurchasedAt: time.Now()})
	if err != nil {
		t.Fatalf("Failed to grant entitlement: %v", err)
	}
	if created {
		t.Error("Grant over an existing entitlement should be a no-op")
	}

	allowed, err := redisService.CheckRateLimit(ctx, userID, "checkout", 5, time.Minute)
	if err != nil {
		t.Errorf("Failed to check rate limit: %v", err)
	}
	if !allowed {
		t.Error("First checkout should be allowed")
	}
}

func TestRedisNonces(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx := context.Background()

	address := services.NormalizeAddress("0xAbC0000000000000000000000000000000000001")
	nonce := &models.Nonce{Address: address, Token: "tok", Message: "msg", CreatedAt: time.Now()}

	if err := redisService.SaveNonce(ctx, nonce, time.Minute); err != nil {
		t.Fatalf("Failed to save nonce: %v", err)
	}

	got, err := redisService.GetNonce(ctx, address)
	if err != nil {
		t.Fatalf("Failed to get nonce: %v", err)
	}
	if got.Token != "tok" {
		t.Errorf("Expected token tok, got %s", got.Token)
	}

	if err := redisService.DeleteNonce(ctx, address); err != nil {
		t.Fatalf("Failed to delete nonce: %v", err)
	}
	if _, err := redisService.GetNonce(ctx, address); err != services.ErrDocumentNotFound {
		t.Errorf("Expected ErrDocumentNotFound after delete, got %v", err)
	}
}

func TestRedisUserEvents(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe, err := redisService.SubscribeUserEvents(ctx, "0xtest_events")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer unsubscribe()

	err = redisService.PublishUserEvent(ctx, &models.UserEvent{Type: models.EventWishlistChanged, UserID: "0xtest_events", At: time.Now()})
	if err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case event := <-events:
		if event.Type != models.EventWishlistChanged {
			t.Errorf("Unexpected event type %s", event.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No event received")
	}
}

func cleanupTestData(t *testing.T, redisService *services.RedisService, userID, gameID, sessionID string) {
	ctx := context.Background()
	if err := redisService.DeleteUserData(ctx, userID); err != nil {
		t.Errorf("Failed to cleanup user data: %v", err)
	}
	if err := redisService.DeleteSale(ctx, models.SaleID(sessionID, gameID)); err != nil {
		t.Errorf("Failed to cleanup sale: %v", err)
	}
	if err := redisService.DeleteGame(ctx, gameID); err != nil {
		t.Errorf("Failed to cleanup game: %v", err)
	}
}
