package models

import "time"

type AdminMessage struct {
	ID        string    `json:"id" validate:"required"`
	UserID    string    `json:"userId" validate:"required"`
	Subject   string    `json:"subject" validate:"required,max=200"`
	Body      string    `json:"body" validate:"required,max=5000"`
	CreatedAt time.Time `json:"createdAt" validate:"required"`
}

type AdminMessageRequest struct {
	Subject string `json:"subject" binding:"required,max=200"`
	Body    string `json:"body" binding:"required,max=5000"`
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

type DeveloperApplication struct {
	ID         string            `json:"id" validate:"required"`
	UserID     string            `json:"userId" validate:"required"`
	StudioName string            `json:"studioName" validate:"required,max=120"`
	Website    string            `json:"website,omitempty" validate:"omitempty,url"`
	Pitch      string            `json:"pitch" validate:"required,max=2000"`
	Status     ApplicationStatus `json:"status" validate:"required,oneof=pending approved rejected"`
	CreatedAt  time.Time         `json:"createdAt" validate:"required"`
	ReviewedAt *time.Time        `json:"reviewedAt,omitempty"`
	ReviewedBy string            `json:"reviewedBy,omitempty"`
}

type DeveloperApplicationRequest struct {
	StudioName string `json:"studioName" binding:"required,max=120"`
	Website    string `json:"website" binding:"omitempty,url"`
	Pitch      string `json:"pitch" binding:"required,max=2000"`
}

type ApplicationReview struct {
	Approve bool `json:"approve"`
}
