package models

import "time"

type GameStatus string

const (
	GameStatusPending  GameStatus = "pending"
	GameStatusApproved GameStatus = "approved"
	GameStatusRejected GameStatus = "rejected"
)

type Game struct {
	ID              string     `json:"id" validate:"required"`
	Title           string     `json:"title" validate:"required,max=120"`
	Price           float64    `json:"price" validate:"gte=0"`
	Description     string     `json:"description" validate:"max=5000"`
	Genres          []string   `json:"genres" validate:"required,min=1,dive,required"`
	Images          []string   `json:"images" validate:"dive,url"`
	DownloadURL     string     `json:"downloadUrl,omitempty" validate:"omitempty,url"`
	RepositoryURL   string     `json:"repositoryUrl,omitempty" validate:"omitempty,url"`
	Status          GameStatus `json:"status" validate:"required,oneof=pending approved rejected"`
	DeveloperID     string     `json:"developerId" validate:"required"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	SubmittedAt     time.Time  `json:"submittedAt" validate:"required"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (g *Game) HasGenre(genre string) bool {
	for _, gg := range g.Genres {
		if gg == genre {
			return true
		}
	}
	return false
}

// GameInput is what a developer submits or edits. Moderation fields are never
// taken from the client.
type GameInput struct {
	Title         string   `json:"title" binding:"required,max=120"`
	Price         float64  `json:"price" binding:"gte=0"`
	Description   string   `json:"description" binding:"max=5000"`
	Genres        []string `json:"genres" binding:"required,min=1,dive,required"`
	Images        []string `json:"images" binding:"dive,url"`
	DownloadURL   string   `json:"downloadUrl" binding:"omitempty,url"`
	RepositoryURL string   `json:"repositoryUrl" binding:"omitempty,url"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}
