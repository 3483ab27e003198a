package models_test

import (
	"errors"
	"storefront-backend/internal/models"
	"testing"
	"time"
)

func TestModels(t *testing.T) {
	game := &models.Game{
		ID:          models.GenerateGameID(),
		Title:       "Hollow Peaks",
		Price:       9.99,
		Genres:      []string{"platformer"},
		Status:      models.GameStatusPending,
		DeveloperID: "0xdev",
		SubmittedAt: time.Now(),
	}

	if game.ID == "" {
		t.Error("Game ID should not be empty")
	}

	if err := models.Validate(game); err != nil {
		t.Errorf("Game validation failed: %v", err)
	}

	invalid := &models.Game{
		ID:          "g1",
		Title:       "No genres",
		Price:       -1,
		Status:      "published",
		DeveloperID: "0xdev",
		SubmittedAt: time.Now(),
	}

	if err := models.Validate(invalid); err == nil {
		t.Error("Game with negative price, no genres and unknown status should fail validation")
	}

	user := models.NewUser("0xabc", time.Now())
	if user.Role != models.RoleUser {
		t.Errorf("Expected new user role %q, got %q", models.RoleUser, user.Role)
	}
	if err := models.Validate(user); err != nil {
		t.Errorf("User validation failed: %v", err)
	}

	if models.SaleID("sess_1", "g1") != "sess_1:g1" {
		t.Errorf("Unexpected sale id %q", models.SaleID("sess_1", "g1"))
	}

	if models.CentsFromPrice(10) != 1000 || models.CentsFromPrice(19.99) != 1999 {
		t.Error("CentsFromPrice should round to whole cents")
	}
}

func TestPaymentSessionPurchase(t *testing.T) {
	tests := []struct {
		name      string
		metadata  map[string]string
		wantUser  string
		wantItems int
		wantErr   bool
	}{
		{
			name:      "valid",
			metadata:  map[string]string{"userId": "u1", "gamePrices": `[{"id":"g1","price":10}]`},
			wantUser:  "u1",
			wantItems: 1,
		},
		{
			name:      "duplicates collapse",
			metadata:  map[string]string{"userId": "u1", "gamePrices": `[{"id":"g1","price":10},{"id":"g1","price":5},{"id":"g2","price":0}]`},
			wantUser:  "u1",
			wantItems: 2,
		},
		{
			name:     "missing user",
			metadata: map[string]string{"gamePrices": `[{"id":"g1","price":10}]`},
			wantErr:  true,
		},
		{
			name:     "missing prices",
			metadata: map[string]string{"userId": "u1"},
			wantErr:  true,
		},
		{
			name:     "unparsable prices",
			metadata: map[string]string{"userId": "u1", "gamePrices": `not json`},
			wantErr:  true,
		},
		{
			name:     "empty prices",
			metadata: map[string]string{"userId": "u1", "gamePrices": `[]`},
			wantErr:  true,
		},
		{
			name:     "negative price",
			metadata: map[string]string{"userId": "u1", "gamePrices": `[{"id":"g1","price":-1}]`},
			wantErr:  true,
		},
		{
			name:     "item without id",
			metadata: map[string]string{"userId": "u1", "gamePrices": `[{"price":3}]`},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &models.PaymentSession{ID: "sess", PaymentStatus: models.PaymentStatusPaid, Metadata: tt.metadata}
			userID, items, err := session.Purchase()

			if tt.wantErr {
				if !errors.Is(err, models.ErrMalformedMetadata) {
					t.Fatalf("Expected ErrMalformedMetadata, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if userID != tt.wantUser {
				t.Errorf("Expected user %q, got %q", tt.wantUser, userID)
			}
			if len(items) != tt.wantItems {
				t.Errorf("Expected %d items, got %d", tt.wantItems, len(items))
			}
		})
	}
}

func TestEncodeGamePricesRoundTrip(t *testing.T) {
	encoded, err := models.EncodeGamePrices([]models.LineItem{{GameID: "g1", Price: 10}, {GameID: "g2", Price: 4.5}})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	session := &models.PaymentSession{Metadata: map[string]string{"userId": "u1", "gamePrices": encoded}}
	_, items, err := session.Purchase()
	if err != nil {
		t.Fatalf("Failed to parse encoded prices: %v", err)
	}
	if items[1].GameID != "g2" || items[1].Price != 4.5 {
		t.Errorf("Unexpected second item: %+v", items[1])
	}
}

func TestNonceExpired(t *testing.T) {
	now := time.Now()
	nonce := &models.Nonce{CreatedAt: now.Add(-10 * time.Minute)}

	if !nonce.Expired(now, 5*time.Minute) {
		t.Error("Nonce older than ttl should be expired")
	}
	if nonce.Expired(now, 15*time.Minute) {
		t.Error("Nonce younger than ttl should not be expired")
	}
	if nonce.Expired(now, 0) {
		t.Error("Zero ttl disables expiry")
	}
}

func TestDecodeDocumentRejectsUnknownFields(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"unknown field", `{"userId":"u1","gameId":"g1","addedAt":"2025-01-01T00:00:00Z","extra":true}`, true},
		{"missing game id", `{"userId":"u1","addedAt":"2025-01-01T00:00:00Z"}`, true},
		{"valid", `{"userId":"u1","gameId":"g1","addedAt":"2025-01-01T00:00:00Z"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entry models.WishlistEntry
			err := models.DecodeDocument([]byte(tt.doc), &entry)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeDocument() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
