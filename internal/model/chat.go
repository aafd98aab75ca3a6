package model

import "time"

// Chat is a two-party thread. The pair is stored with User1ID <= User2ID.
type Chat struct {
	ChatID  int64 `json:"chat_id"`
	User1ID int64 `json:"user1_id"`
	User2ID int64 `json:"user2_id"`
}

// Other returns the participant that is not userID.
func (c *Chat) Other(userID int64) int64 {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// Message is immutable once stored.
type Message struct {
	MessageID     string    `json:"message_id"`
	ChatID        int64     `json:"chat_id"`
	SenderID      int64     `json:"sender_id"`
	ReceiverID    int64     `json:"receiver_id"`
	SenderEmail   string    `json:"sender_email"`
	ReceiverEmail string    `json:"receiver_email"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
}

// IsSelf reports whether sender and receiver are the same account.
func (m *Message) IsSelf() bool {
	return m.SenderID == m.ReceiverID
}
