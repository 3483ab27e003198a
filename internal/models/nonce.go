package models

import "time"

type Nonce struct {
	Address   string    `json:"address" validate:"required"`
	Token     string    `json:"token" validate:"required"`
	Message   string    `json:"message" validate:"required"`
	CreatedAt time.Time `json:"createdAt" validate:"required"`
}

func (n *Nonce) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(n.CreatedAt) > ttl
}

type NonceRequest struct {
	Address string `json:"address" binding:"required"`
}

type VerifyRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}
