package repository

import (
	"database/sql"
	"time"

	"github.com/languagebuddy/buddy/internal/repository/base"
)

// Table names published to subscribers.
const (
	TableAccounts       = "accounts"
	TableSessions       = "sessions"
	TableSessionJoin    = "user_session_join"
	TableMessages       = "messages"
	TableChats          = "chats"
	TableFriendRequests = "friend_requests"
	TableFriendships    = "friendships"
	TableFriendRatings  = "friend_ratings"
	TableSessionInvites = "session_invites"
	TableNotifications  = "notifications"
)

// Store groups the repositories bound to one connection or transaction.
type Store struct {
	Accounts      *AccountRepository
	Sessions      *SessionRepository
	Requests      *FriendRequestRepository
	Friendships   *FriendshipRepository
	Ratings       *RatingRepository
	Chats         *ChatRepository
	Messages      *MessageRepository
	Invites       *InviteRepository
	Notifications *NotificationRepository
}

// NewStore binds every repository to r.
func NewStore(r *base.Repository) *Store {
	return &Store{
		Accounts:      NewAccountRepository(r),
		Sessions:      NewSessionRepository(r),
		Requests:      NewFriendRequestRepository(r),
		Friendships:   NewFriendshipRepository(r),
		Ratings:       NewRatingRepository(r),
		Chats:         NewChatRepository(r),
		Messages:      NewMessageRepository(r),
		Invites:       NewInviteRepository(r),
		Notifications: NewNotificationRepository(r),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

// collect scans every row and closes rows.
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Timestamps are stored as unix milliseconds.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
