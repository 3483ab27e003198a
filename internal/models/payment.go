package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

const (
	MetadataUserID     = "userId"
	MetadataGamePrices = "gamePrices"
)

var ErrMalformedMetadata = errors.New("malformed session metadata")

// PaymentSession is the provider's view of a checkout. It is read-only here.
type PaymentSession struct {
	ID            string            `json:"id"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	URL           string            `json:"url,omitempty"`
}

// LineItem is one (game, price-at-purchase) pair carried in session metadata.
type LineItem struct {
	GameID string  `json:"id"`
	Price  float64 `json:"price"`
}

func (s *PaymentSession) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// Purchase extracts the purchasing user and line items from the metadata.
// Duplicate game ids keep their first price.
func (s *PaymentSession) Purchase() (string, []LineItem, error) {
	userID := strings.TrimSpace(s.Metadata[MetadataUserID])
	if userID == "" {
		return "", nil, fmt.Errorf("%w: missing %s", ErrMalformedMetadata, MetadataUserID)
	}

	raw, ok := s.Metadata[MetadataGamePrices]
	if !ok || strings.TrimSpace(raw) == "" {
		return "", nil, fmt.Errorf("%w: missing %s", ErrMalformedMetadata, MetadataGamePrices)
	}

	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if len(items) == 0 {
		return "", nil, fmt.Errorf("%w: empty %s", ErrMalformedMetadata, MetadataGamePrices)
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]LineItem, 0, len(items))
	for i, item := range items {
		if item.GameID == "" {
			return "", nil, fmt.Errorf("%w: item %d has no id", ErrMalformedMetadata, i)
		}
		if item.Price < 0 {
			return "", nil, fmt.Errorf("%w: item %s has negative price", ErrMalformedMetadata, item.GameID)
		}
		if _, dup := seen[item.GameID]; dup {
			continue
		}
		seen[item.GameID] = struct{}{}
		out = append(out, item)
	}

	return userID, out, nil
}

// EncodeGamePrices renders line items in the metadata format read by Purchase.
func EncodeGamePrices(items []LineItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type CheckoutRequest struct {
	CartItems []Game `json:"cartItems"`
	UserID    string `json:"userId"`
}

type SessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}
