package models

import "time"

type UserEventType string

const (
	EventWishlistChanged   UserEventType = "wishlist_changed"
	EventLibraryChanged    UserEventType = "library_changed"
	EventPurchaseCompleted UserEventType = "purchase_completed"
)

// UserEvent tells every live mirror of a user that server-held state moved.
type UserEvent struct {
	Type      UserEventType `json:"type"`
	UserID    string        `json:"userId"`
	GameIDs   []string      `json:"gameIds,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	At        time.Time     `json:"at"`
}

// PermissionDiagnostic is what gets recorded when a write is refused, for
// debugging access rules after the fact.
type PermissionDiagnostic struct {
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	UserID    string    `json:"userId"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}
