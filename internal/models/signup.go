package models

import (
	"time"

	"github.com/google/uuid"
)

// SignupType distinguishes the capacity in which someone attends.
type SignupType string

const (
	SignupParticipant SignupType = "participant"
	SignupCaregiver   SignupType = "caregiver"
	SignupVolunteer   SignupType = "volunteer"
)

// ParseSignupType returns the SignupType for a string, or false if unknown.
func ParseSignupType(s string) (SignupType, bool) {
	switch SignupType(s) {
	case SignupParticipant, SignupCaregiver, SignupVolunteer:
		return SignupType(s), true
	}
	return "", false
}

// Signup links an attendee to an event and carries attendance state.
//
// QRTokenHash holds the SHA-256 digest of the currently active single-use
// ticket token; the raw token itself is never stored. Nil means no ticket
// has been issued (or the previous one was consumed without re-issue).
// CheckedInAt transitions nil -> non-nil exactly once; the repository
// enforces this with a conditional update.
type Signup struct {
	ID           uuid.UUID  `json:"id"`
	EventID      uuid.UUID  `json:"event_id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	Type         SignupType `json:"signup_type"`
	QRTokenHash  *string    `json:"-"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy  *uuid.UUID `json:"checked_in_by,omitempty"`
	CheckInNotes *string    `json:"check_in_notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
