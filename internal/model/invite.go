package model

import "time"

// Invite statuses
const (
	InviteStatusPending  = "pending"
	InviteStatusApproved = "approved"
	InviteStatusDeclined = "declined"
)

// SessionInvite proposes a session to ReceiverEmail. Approving it creates a
// session hosted by the receiver with the sender joined.
type SessionInvite struct {
	ID            int64     `json:"id"`
	SenderEmail   string    `json:"sender_email" validate:"required,email"`
	ReceiverEmail string    `json:"receiver_email" validate:"required,email"`
	Title         string    `json:"title" validate:"required"`
	Language      string    `json:"language"`
	Date          string    `json:"date" validate:"required"`
	Time          string    `json:"time" validate:"required"`
	Duration      string    `json:"duration"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsPending checks if invite is pending
func (i *SessionInvite) IsPending() bool {
	return i.Status == InviteStatusPending
}

// ToSession builds the session an approval creates.
func (i *SessionInvite) ToSession(sessionID, hostEmail string) Session {
	return Session{
		SessionID:   sessionID,
		HostEmail:   hostEmail,
		Title:       i.Title,
		Language:    i.Language,
		Description: i.Description,
		Date:        i.Date,
		Time:        i.Time,
		Duration:    i.Duration,
	}
}

// CanTransition reports whether an invite or friend request may move from one
// status to another. Only pending rows may change.
func CanTransition(from, to string) bool {
	if from != InviteStatusPending {
		return false
	}
	switch to {
	case InviteStatusApproved, InviteStatusDeclined, RequestStatusAccepted:
		return true
	}
	return false
}

// Notification is a user-facing message produced by invite responses.
type Notification struct {
	ID        int64     `json:"id"`
	UserEmail string    `json:"user_email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
