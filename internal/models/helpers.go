package models

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func GenerateGameID() string {
	return fmt.Sprintf("game_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func GenerateMessageID() string {
	return uuid.New().String()
}

func GenerateApplicationID() string {
	return fmt.Sprintf("app_%s", uuid.New().String())
}

func SaleID(sessionID, gameID string) string {
	return sessionID + ":" + gameID
}

func GenerateNonceToken() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %v", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Validate checks a document against its struct tags before it is persisted.
func Validate(doc any) error {
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("invalid %T: %w", doc, err)
	}
	return nil
}

// DecodeDocument is the read side of the store boundary: unknown fields and
// missing required fields are both rejected.
func DecodeDocument(data []byte, doc any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(doc); err != nil {
		return fmt.Errorf("failed to decode %T: %v", doc, err)
	}
	return Validate(doc)
}

func CentsFromPrice(price float64) int64 {
	return int64(price*100 + 0.5)
}

func FormatCurrency(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}
