package model

import "time"

// Friend request statuses
const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusDeclined = "declined"
)

// FriendRequest is a directed request; accepted and declined are terminal.
type FriendRequest struct {
	RequestID int64  `json:"request_id"`
	FromEmail string `json:"from_email"`
	ToEmail   string `json:"to_email"`
	Status    string `json:"status"`
}

// IsPending checks if request is pending
func (r *FriendRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// Friendship is an undirected pair stored with User1Email <= User2Email.
type Friendship struct {
	ID         int64  `json:"id"`
	User1Email string `json:"user1_email"`
	User2Email string `json:"user2_email"`
}

// NewFriendship canonicalizes the pair.
func NewFriendship(a, b string) Friendship {
	u1, u2 := OrderEmails(a, b)
	return Friendship{User1Email: u1, User2Email: u2}
}

// Other returns the member of the pair that is not email.
func (f *Friendship) Other(email string) string {
	if f.User1Email == email {
		return f.User2Email
	}
	return f.User1Email
}

// OrderEmails returns the two emails in lexicographic order.
func OrderEmails(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// FriendRating is one rating given by RaterEmail to FriendEmail.
type FriendRating struct {
	ID          int64     `json:"id"`
	FriendEmail string    `json:"friend_email"`
	RaterEmail  string    `json:"rater_email"`
	Rating      float64   `json:"rating"`
	Timestamp   time.Time `json:"timestamp"`
}

// FriendAverage is the aggregate rating of one user.
type FriendAverage struct {
	Email   string  `json:"email"`
	Average float64 `json:"average"`
}

const (
	MinRating = 1
	MaxRating = 5
)
