package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role on the platform.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleCaregiver   Role = "caregiver"
	RoleVolunteer   Role = "volunteer"
	RoleStaff       Role = "staff"
	RoleAdmin       Role = "admin"
)

// ParseRole returns the Role for a string, or false if unknown.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleParticipant, RoleCaregiver, RoleVolunteer, RoleStaff, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// User represents a platform user.
type User struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	Password           string    `json:"-"`
	FullName           string    `json:"full_name"`
	Role               Role      `json:"role"`
	Phone              string    `json:"phone,omitempty"`
	PreferredLanguage  string    `json:"preferred_language,omitempty"`
	AccessibilityNotes string    `json:"accessibility_notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
