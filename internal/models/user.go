package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleDev   Role = "dev"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDev, RoleAdmin:
		return true
	}
	return false
}

// CanPublish reports whether the role may submit games without holding the
// developer-upgrade entitlement.
func (r Role) CanPublish() bool {
	return r == RoleDev || r == RoleAdmin
}

type User struct {
	ID          string    `json:"id" validate:"required"`
	DisplayName string    `json:"displayName" validate:"max=64"`
	Email       string    `json:"email" validate:"omitempty,email"`
	Role        Role      `json:"role" validate:"required,oneof=user dev admin"`
	AgeVerified bool      `json:"ageVerified"`
	CreatedAt   time.Time `json:"createdAt" validate:"required"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func NewUser(id string, now time.Time) *User {
	return &User{
		ID:        id,
		Role:      RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type ProfileUpdate struct {
	DisplayName string `json:"displayName" binding:"required,max=64"`
	Email       string `json:"email" binding:"omitempty,email"`
	AgeVerified bool   `json:"ageVerified"`
}

type RoleUpdate struct {
	Role Role `json:"role" binding:"required,oneof=user dev admin"`
}
