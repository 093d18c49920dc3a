package model

import (
	"strings"
	"time"
)

// FirstContactWindow is how long a user may stay silent before the channel
// requires an approved template to reach them again.
const FirstContactWindow = 24 * time.Hour

// User is a WhatsApp contact known to the assistant.
type User struct {
	ID            string    `json:"id" db:"id"`
	Phone         string    `json:"phone" db:"phone"`
	Name          string    `json:"name" db:"name"`
	LastContactAt time.Time `json:"last_contact_at" db:"last_contact_at"`
	Subscribed    bool      `json:"subscribed" db:"subscribed"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// NeedsFirstContact reports whether the user has been silent for at least
// FirstContactWindow as of now.
func (u User) NeedsFirstContact(now time.Time) bool {
	return now.Sub(u.LastContactAt) >= FirstContactWindow
}

// CanonicalPhone normalizes a channel identity such as
// "whatsapp:+55 79 98806-4629" into "+5579988064629". It returns a
// ValidationError when no digits remain.
func CanonicalPhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "whatsapp:")

	var sb strings.Builder
	sb.WriteByte('+')
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 1 {
		return "", &ValidationError{Field: "phone", Message: "identity has no digits"}
	}
	return sb.String(), nil
}
