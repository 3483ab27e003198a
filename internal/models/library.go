package models

import "time"

// LibraryEntry is an entitlement: the user may download the game regardless of
// its current price or moderation status.
type LibraryEntry struct {
	UserID          string    `json:"userId" validate:"required"`
	GameID          string    `json:"gameId" validate:"required"`
	SessionID       string    `json:"sessionId,omitempty"`
	PriceAtPurchase float64   `json:"priceAtPurchase" validate:"gte=0"`
	PurchasedAt     time.Time `json:"purchasedAt" validate:"required"`
}

type WishlistEntry struct {
	UserID  string    `json:"userId" validate:"required"`
	GameID  string    `json:"gameId" validate:"required"`
	AddedAt time.Time `json:"addedAt" validate:"required"`
}
