package repository

import (
	"context"
	"fmt"

	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository/base"
)

type MessageRepository struct {
	*base.Repository
}

func NewMessageRepository(r *base.Repository) *MessageRepository {
	return &MessageRepository{Repository: r}
}

const messageColumns = `message_id, chat_id, sender_id, receiver_id, sender_email, receiver_email, content, sent_at`

func scanMessage(row scanner) (*model.Message, error) {
	var (
		m      model.Message
		sentAt int64
	)
	err := row.Scan(
		&m.MessageID,
		&m.ChatID,
		&m.SenderID,
		&m.ReceiverID,
		&m.SenderEmail,
		&m.ReceiverEmail,
		&m.Content,
		&sentAt,
	)
	if err != nil {
		return nil, err
	}
	m.Timestamp = fromMillis(sentAt)
	return &m, nil
}

// Insert stores a message. Ids are unique so an existing id is an error.
func (r *MessageRepository) Insert(ctx context.Context, m *model.Message) error {
	query := `
		INSERT INTO messages (message_id, chat_id, sender_id, receiver_id, sender_email, receiver_email, content, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.ExecAffected(
		ctx, TableMessages, query,
		m.MessageID,
		m.ChatID,
		m.SenderID,
		m.ReceiverID,
		m.SenderEmail,
		m.ReceiverEmail,
		m.Content,
		toMillis(m.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

// ForChat returns the messages of a chat, newest first.
func (r *MessageRepository) ForChat(ctx context.Context, chatID int64) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE chat_id = ?
		ORDER BY sent_at DESC, message_id DESC
	`

	rows, err := r.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}

	messages, err := collect(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("scan chat messages: %w", err)
	}

	return messages, nil
}

// Between returns the conversation of two users in both directions, oldest first.
func (r *MessageRepository) Between(ctx context.Context, emailA, emailB string) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_email = ? AND receiver_email = ?)
			OR (sender_email = ? AND receiver_email = ?)
		ORDER BY sent_at, message_id
	`

	rows, err := r.Query(ctx, query, emailA, emailB, emailB, emailA)
	if err != nil {
		return nil, fmt.Errorf("list messages between users: %w", err)
	}

	messages, err := collect(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("scan messages between users: %w", err)
	}

	return messages, nil
}

// Last returns the newest message of a chat, or nil.
func (r *MessageRepository) Last(ctx context.Context, chatID int64) (*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE chat_id = ?
		ORDER BY sent_at DESC, message_id DESC
		LIMIT 1
	`

	m, err := scanMessage(r.QueryRow(ctx, query, chatID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last message: %w", err)
	}

	return m, nil
}

// LatestPerChat returns the newest message of every chat userID takes part
// in, newest first. Messages a user sent to themselves are skipped. A limit
// of zero or less returns every chat.
func (r *MessageRepository) LatestPerChat(ctx context.Context, userID int64, limit int) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM (
			SELECT ` + messageColumns + `,
				ROW_NUMBER() OVER (PARTITION BY chat_id ORDER BY sent_at DESC, message_id DESC) AS rn
			FROM messages
			WHERE (sender_id = ? OR receiver_id = ?) AND sender_id <> receiver_id
		) ranked
		WHERE rn = 1
		ORDER BY sent_at DESC, message_id DESC
	`
	args := []any{userID, userID}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list latest messages: %w", err)
	}

	messages, err := collect(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("scan latest messages: %w", err)
	}

	return messages, nil
}

// DeleteForChat removes every message of a chat.
func (r *MessageRepository) DeleteForChat(ctx context.Context, chatID int64) (int64, error) {
	n, err := r.ExecAffected(ctx, TableMessages, `DELETE FROM messages WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, fmt.Errorf("delete chat messages: %w", err)
	}
	return n, nil
}
