package repository

import (
	"context"
	"fmt"

	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository/base"
)

type ChatRepository struct {
	*base.Repository
}

func NewChatRepository(r *base.Repository) *ChatRepository {
	return &ChatRepository{Repository: r}
}

// orderIDs canonicalizes a participant pair.
func orderIDs(a, b int64) (int64, int64) {
	if a <= b {
		return a, b
	}
	return b, a
}

func scanChat(row scanner) (*model.Chat, error) {
	var c model.Chat
	if err := row.Scan(&c.ChatID, &c.User1ID, &c.User2ID); err != nil {
		return nil, err
	}
	return &c, nil
}

// Find returns the chat between two users in either order, or nil.
func (r *ChatRepository) Find(ctx context.Context, a, b int64) (*model.Chat, error) {
	u1, u2 := orderIDs(a, b)

	query := `SELECT chat_id, user1_id, user2_id FROM chats WHERE user1_id = ? AND user2_id = ?`

	c, err := scanChat(r.QueryRow(ctx, query, u1, u2))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find chat: %w", err)
	}

	return c, nil
}

// Insert creates the chat for a pair. It returns nil when the pair already
// has one.
func (r *ChatRepository) Insert(ctx context.Context, a, b int64) (*model.Chat, error) {
	u1, u2 := orderIDs(a, b)

	query := `
		INSERT INTO chats (user1_id, user2_id)
		VALUES (?, ?)
		ON CONFLICT (user1_id, user2_id) DO NOTHING
		RETURNING chat_id
	`

	c := &model.Chat{User1ID: u1, User2ID: u2}
	if err := r.QueryRow(ctx, query, u1, u2).Scan(&c.ChatID); err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	r.Touch(TableChats)

	return c, nil
}

// GetByID returns nil when the chat does not exist.
func (r *ChatRepository) GetByID(ctx context.Context, chatID int64) (*model.Chat, error) {
	query := `SELECT chat_id, user1_id, user2_id FROM chats WHERE chat_id = ?`

	c, err := scanChat(r.QueryRow(ctx, query, chatID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}

	return c, nil
}

// ListFor returns every chat userID takes part in.
func (r *ChatRepository) ListFor(ctx context.Context, userID int64) ([]*model.Chat, error) {
	query := `
		SELECT chat_id, user1_id, user2_id
		FROM chats
		WHERE user1_id = ? OR user2_id = ?
		ORDER BY chat_id
	`

	rows, err := r.Query(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	chats, err := collect(rows, scanChat)
	if err != nil {
		return nil, fmt.Errorf("scan chats: %w", err)
	}

	return chats, nil
}

// Delete removes the chat row only.
func (r *ChatRepository) Delete(ctx context.Context, chatID int64) (bool, error) {
	n, err := r.ExecAffected(ctx, TableChats, `DELETE FROM chats WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, fmt.Errorf("delete chat: %w", err)
	}
	return n > 0, nil
}
