package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/languagebuddy/buddy/internal/apperrors"
	"github.com/languagebuddy/buddy/internal/metrics"
	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository"
	"github.com/languagebuddy/buddy/internal/repository/base"
	"github.com/languagebuddy/buddy/internal/watch"
)

// SendMessageInput describes one message from the sender to the receiver.
type SendMessageInput struct {
	SenderID      int64
	ReceiverID    int64
	SenderEmail   string
	ReceiverEmail string
	Content       string
}

type ChatService struct {
	core
	recentLimit int
}

func NewChatService(db *base.DB, recentLimit int, m *metrics.Metrics, logger *zap.Logger) *ChatService {
	if recentLimit <= 0 {
		recentLimit = defaultRecentChatsLimit
	}
	return &ChatService{
		core:        newCore(db, m, logger),
		recentLimit: recentLimit,
	}
}

// StartNewChat returns the chat of two users, creating it on first use.
// The argument order does not matter.
func (s *ChatService) StartNewChat(ctx context.Context, userA, userB int64) (_ int64, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("chat_start", start, err) }()

	chat, created, err := resolveChat(ctx, s.store, userA, userB)
	if err != nil {
		return 0, fmt.Errorf("start chat: %w", err)
	}

	if created {
		s.logger.Info("Chat created",
			zap.Int64("chat_id", chat.ChatID),
			zap.Int64("user1", chat.User1ID),
			zap.Int64("user2", chat.User2ID),
		)
	}

	return chat.ChatID, nil
}

// resolveChat looks the pair up, inserts it when missing and looks it up
// again when a concurrent insert won.
func resolveChat(ctx context.Context, st *repository.Store, a, b int64) (*model.Chat, bool, error) {
	chat, err := st.Chats.Find(ctx, a, b)
	if err != nil || chat != nil {
		return chat, false, err
	}

	chat, err = st.Chats.Insert(ctx, a, b)
	if err != nil {
		return nil, false, err
	}
	if chat != nil {
		return chat, true, nil
	}

	chat, err = st.Chats.Find(ctx, a, b)
	if err != nil {
		return nil, false, err
	}
	if chat == nil {
		return nil, false, apperrors.ErrChatNotFound
	}
	return chat, false, nil
}

// SendMessage stores a message, creating the chat if needed, in one
// transaction. Ids are "{chatId}|{millis}|{uuid}" so two messages sent in
// the same millisecond never collide.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (_ *model.Message, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("chat_send_message", start, err) }()

	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: message content is empty", apperrors.ErrValidation)
	}

	sentAt := s.now()
	msg := &model.Message{
		SenderID:      in.SenderID,
		ReceiverID:    in.ReceiverID,
		SenderEmail:   model.NormalizeEmail(in.SenderEmail),
		ReceiverEmail: model.NormalizeEmail(in.ReceiverEmail),
		Content:       in.Content,
		Timestamp:     time.UnixMilli(sentAt.UnixMilli()).UTC(),
	}

	err = s.inTx(ctx, func(st *repository.Store) error {
		chat, _, err := resolveChat(ctx, st, in.SenderID, in.ReceiverID)
		if err != nil {
			return err
		}

		msg.ChatID = chat.ChatID
		msg.MessageID = fmt.Sprintf("%d|%d|%s", chat.ChatID, sentAt.UnixMilli(), uuid.NewString())

		return st.Messages.Insert(ctx, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Message sent",
		zap.String("message_id", msg.MessageID),
		zap.Int64("chat_id", msg.ChatID),
		zap.Int64("sender_id", msg.SenderID),
	)

	return msg, nil
}

// ChatsWithLastMessage returns the newest message of every chat of userID,
// newest first. Messages to oneself never appear.
func (s *ChatService) ChatsWithLastMessage(ctx context.Context, userID int64) ([]*model.Message, error) {
	return s.store.Messages.LatestPerChat(ctx, userID, 0)
}

// RecentChats is ChatsWithLastMessage cut to limit chats; a limit of zero
// or less uses the configured default.
func (s *ChatService) RecentChats(ctx context.Context, userID int64, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = s.recentLimit
	}
	return s.store.Messages.LatestPerChat(ctx, userID, limit)
}

func (s *ChatService) ObserveChatsWithLastMessage(ctx context.Context, userID int64) *watch.Subscription[[]*model.Message] {
	return observe(ctx, &s.core, []string{repository.TableMessages}, func(ctx context.Context) ([]*model.Message, error) {
		return s.ChatsWithLastMessage(ctx, userID)
	})
}

func (s *ChatService) ObserveRecentChats(ctx context.Context, userID int64, limit int) *watch.Subscription[[]*model.Message] {
	return observe(ctx, &s.core, []string{repository.TableMessages}, func(ctx context.Context) ([]*model.Message, error) {
		return s.RecentChats(ctx, userID, limit)
	})
}

// MessagesForChat returns a chat's messages, newest first.
func (s *ChatService) MessagesForChat(ctx context.Context, chatID int64) ([]*model.Message, error) {
	return s.store.Messages.ForChat(ctx, chatID)
}

func (s *ChatService) ObserveMessagesForChat(ctx context.Context, chatID int64) *watch.Subscription[[]*model.Message] {
	return observe(ctx, &s.core, []string{repository.TableMessages}, func(ctx context.Context) ([]*model.Message, error) {
		return s.MessagesForChat(ctx, chatID)
	})
}

// MessagesBetween returns the conversation of two users, oldest first.
func (s *ChatService) MessagesBetween(ctx context.Context, emailA, emailB string) ([]*model.Message, error) {
	return s.store.Messages.Between(ctx, model.NormalizeEmail(emailA), model.NormalizeEmail(emailB))
}

func (s *ChatService) ObserveMessagesBetween(ctx context.Context, emailA, emailB string) *watch.Subscription[[]*model.Message] {
	return observe(ctx, &s.core, []string{repository.TableMessages}, func(ctx context.Context) ([]*model.Message, error) {
		return s.MessagesBetween(ctx, emailA, emailB)
	})
}

// LastMessage returns nil for a chat without messages.
func (s *ChatService) LastMessage(ctx context.Context, chatID int64) (*model.Message, error) {
	return s.store.Messages.Last(ctx, chatID)
}

// Participants returns the two account ids of a chat.
func (s *ChatService) Participants(ctx context.Context, chatID int64) (int64, int64, error) {
	chat, err := s.store.Chats.GetByID(ctx, chatID)
	if err != nil {
		return 0, 0, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return 0, 0, apperrors.ErrChatNotFound
	}
	return chat.User1ID, chat.User2ID, nil
}

// OtherUserAccount returns the account on the other side of a chat, or nil
// when that account is unknown.
func (s *ChatService) OtherUserAccount(ctx context.Context, chatID, currentUserID int64) (*model.Account, error) {
	chat, err := s.store.Chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return nil, apperrors.ErrChatNotFound
	}

	account, err := s.store.Accounts.GetByAccountID(ctx, chat.Other(currentUserID))
	if err != nil {
		return nil, fmt.Errorf("get other account: %w", err)
	}
	return account, nil
}

// UserChats lists the chats userID takes part in.
func (s *ChatService) UserChats(ctx context.Context, userID int64) ([]*model.Chat, error) {
	return s.store.Chats.ListFor(ctx, userID)
}

// DeleteChatCompletely removes a chat and all its messages in one transaction.
func (s *ChatService) DeleteChatCompletely(ctx context.Context, chatID int64) (err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("chat_delete", start, err) }()

	var removed int64
	err = s.inTx(ctx, func(st *repository.Store) error {
		n, err := st.Messages.DeleteForChat(ctx, chatID)
		if err != nil {
			return err
		}
		removed = n
		_, err = st.Chats.Delete(ctx, chatID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	s.logger.Info("Chat deleted",
		zap.Int64("chat_id", chatID),
		zap.Int64("messages", removed),
	)

	return nil
}
