package models

import "time"

// SaleRecord is the append-only audit row for one purchased line item. Its ID
// is derived from the payment session so that re-delivery of the same
// session maps onto the same record.
type SaleRecord struct {
	ID              string    `json:"id" validate:"required"`
	SessionID       string    `json:"sessionId" validate:"required"`
	UserID          string    `json:"userId" validate:"required"`
	GameID          string    `json:"gameId" validate:"required"`
	PriceAtPurchase float64   `json:"priceAtPurchase" validate:"gte=0"`
	CreatedAt       time.Time `json:"createdAt" validate:"required"`
}

// PurchaseBatch is everything a single checkout commits at once.
type PurchaseBatch struct {
	SessionID string
	UserID    string
	Items     []LineItem
	At        time.Time
}

func (b *PurchaseBatch) LibraryEntries() []*LibraryEntry {
	entries := make([]*LibraryEntry, 0, len(b.Items))
	for _, item := range b.Items {
		entries = append(entries, &LibraryEntry{
			UserID:          b.UserID,
			GameID:          item.GameID,
			SessionID:       b.SessionID,
			PriceAtPurchase: item.Price,
			PurchasedAt:     b.At,
		})
	}
	return entries
}

func (b *PurchaseBatch) SaleRecords() []*SaleRecord {
	records := make([]*SaleRecord, 0, len(b.Items))
	for _, item := range b.Items {
		records = append(records, &SaleRecord{
			ID:              SaleID(b.SessionID, item.GameID),
			SessionID:       b.SessionID,
			UserID:          b.UserID,
			GameID:          item.GameID,
			PriceAtPurchase: item.Price,
			CreatedAt:       b.At,
		})
	}
	return records
}

// PurchaseCommit reports which writes of a batch actually created rows.
type PurchaseCommit struct {
	Granted      []string
	AlreadyOwned []string
	SalesWritten int
}

type ReconcileResult struct {
	SessionID    string   `json:"sessionId"`
	UserID       string   `json:"userId"`
	Games        []string `json:"games"`
	Granted      []string `json:"granted"`
	AlreadyOwned []string `json:"alreadyOwned"`
	SalesWritten int      `json:"salesWritten"`
	Duplicate    bool     `json:"duplicate"`
}
