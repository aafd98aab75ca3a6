package model

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"time"
)

// Account statuses
const (
	StatusTeacher   = "teacher"
	StatusStudent   = "student"
	StatusVolunteer = "volunteer"
)

// Account is a registered user's profile, keyed by email.
type Account struct {
	AccountID    int64     `json:"account_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	DisplayName  string    `json:"display_name"`
	Status       string    `json:"status"`
	Bio          string    `json:"bio"`
	Languages    string    `json:"languages"` // comma-joined
	Specialties  string    `json:"specialties"`
	TimeZone     string    `json:"time_zone"`
	Location     string    `json:"location"`
	Availability string    `json:"availability"`
	CreatedAt    time.Time `json:"created_at"`
	Rating       float64   `json:"rating"`
	RatingCount  int       `json:"rating_count"`
}

// Label returns the name shown to other users.
func (a *Account) Label() string {
	if a == nil {
		return ""
	}
	if strings.TrimSpace(a.DisplayName) != "" {
		return a.DisplayName
	}
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// LanguageList splits the comma-joined languages column.
func (a *Account) LanguageList() []string {
	if a.Languages == "" {
		return nil
	}
	parts := strings.Split(a.Languages, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsValidStatus reports whether s is one of the account statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusTeacher, StatusStudent, StatusVolunteer:
		return true
	}
	return false
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountIDFor derives the numeric id of an account from its email: the
// first 8 bytes of SHA-256 over the normalized email, kept positive.
func AccountIDFor(email string) int64 {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return int64(binary.BigEndian.Uint64(sum[:8]) & (1<<63 - 1))
}

// Principal is the authenticated caller. It is passed explicitly to
// operations that act on behalf of a user.
type Principal struct {
	AccountID   int64  `json:"account_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// PrincipalFor builds the principal of an account.
func PrincipalFor(a *Account) Principal {
	return Principal{AccountID: a.AccountID, Email: a.Email, DisplayName: a.Label()}
}

// Label returns the name shown in notifications.
func (p Principal) Label() string {
	if strings.TrimSpace(p.DisplayName) != "" {
		return p.DisplayName
	}
	return p.Email
}

// ProfileUpdate carries a partial profile edit; nil fields keep their stored value.
type ProfileUpdate struct {
	Name         *string
	DisplayName  *string
	Status       *string
	Bio          *string
	Languages    *string
	Specialties  *string
	TimeZone     *string
	Location     *string
	Availability *string
}
