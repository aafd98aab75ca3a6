package service_test

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/languagebuddy/buddy/internal/apperrors"
	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/service"
	"github.com/languagebuddy/buddy/internal/testutil"
)

type chatUsers struct {
	ann, bob, cleo *model.Account
}

func newChatUsers(t *testing.T, env *testutil.Env) chatUsers {
	t.Helper()
	return chatUsers{
		ann:  env.CreateAccount(t, "ann@x.com", "Ann"),
		bob:  env.CreateAccount(t, "bob@x.com", "Bob"),
		cleo: env.CreateAccount(t, "cleo@x.com", "Cleo"),
	}
}

func send(t *testing.T, env *testutil.Env, from, to *model.Account, content string) *model.Message {
	t.Helper()

	msg, err := env.Services.Chats.SendMessage(context.Background(), service.SendMessageInput{
		SenderID:      from.AccountID,
		ReceiverID:    to.AccountID,
		SenderEmail:   from.Email,
		ReceiverEmail: to.Email,
		Content:       content,
	})
	require.NoError(t, err)

	// keep sent_at strictly increasing between messages
	time.Sleep(2 * time.Millisecond)
	return msg
}

func TestStartNewChatIsOrderIndependent(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()
	u := newChatUsers(t, env)

	first, err := env.Services.Chats.StartNewChat(ctx, u.ann.AccountID, u.bob.AccountID)
	require.NoError(t, err)

	again, err := env.Services.Chats.StartNewChat(ctx, u.ann.AccountID, u.bob.AccountID)
	require.NoError(t, err)
	reversed, err := env.Services.Chats.StartNewChat(ctx, u.bob.AccountID, u.ann.AccountID)
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, first, reversed)

	other, err := env.Services.Chats.StartNewChat(ctx, u.ann.AccountID, u.cleo.AccountID)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	chats, err := env.Services.Chats.UserChats(ctx, u.ann.AccountID)
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	u1, u2, err := env.Services.Chats.Participants(ctx, first)
	require.NoError(t, err)
	assert.LessOrEqual(t, u1, u2)
	assert.ElementsMatch(t, []int64{u.ann.AccountID, u.bob.AccountID}, []int64{u1, u2})
}

func TestSendMessageBuildsID(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()
	u := newChatUsers(t, env)

	msg := send(t, env, u.ann, u.bob, "hola")

	chatID, err := env.Services.Chats.StartNewChat(ctx, u.bob.AccountID, u.ann.AccountID)
	require.NoError(t, err)
	assert.Equal(t, chatID, msg.ChatID)

	parts := strings.Split(msg.MessageID, "|")
	require.Len(t, parts, 3)
	assert.Equal(t, strconv.FormatInt(chatID, 10), parts[0])
	assert.Equal(t, strconv.FormatInt(msg.Timestamp.UnixMilli(), 10), parts[1])
	assert.Len(t, parts[2], 36)

	_, err = env.Services.Chats.SendMessage(ctx, service.SendMessageInput{
		SenderID:   u.ann.AccountID,
		ReceiverID: u.bob.AccountID,
		Content:    "   ",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRecentChatsOnePerChatNewestFirst(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()
	u := newChatUsers(t, env)

	send(t, env, u.ann, u.bob, "one")
	send(t, env, u.ann, u.cleo, "two")
	send(t, env, u.bob, u.ann, "three")
	send(t, env, u.ann, u.ann, "note to self")

	recent, err := env.Services.Chats.RecentChats(ctx, u.ann.AccountID, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Content)
	assert.Equal(t, "two", recent[1].Content)

	for _, m := range recent {
		assert.False(t, m.IsSelf())
	}

	limited, err := env.Services.Chats.RecentChats(ctx, u.ann.AccountID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "three", limited[0].Content)

	all, err := env.Services.Chats.ChatsWithLastMessage(ctx, u.cleo.AccountID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "two", all[0].Content)
}

func TestRecentChatsDefaultLimit(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{RecentChatsLimit: 1})
	ctx := context.Background()
	u := newChatUsers(t, env)

	send(t, env, u.ann, u.bob, "one")
	send(t, env, u.ann, u.cleo, "two")

	recent, err := env.Services.Chats.RecentChats(ctx, u.ann.AccountID, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "two", recent[0].Content)
}

func TestMessageOrdering(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()
	u := newChatUsers(t, env)

	first := send(t, env, u.ann, u.bob, "first")
	send(t, env, u.bob, u.ann, "second")
	last := send(t, env, u.ann, u.bob, "third")

	newestFirst, err := env.Services.Chats.MessagesForChat(ctx, first.ChatID)
	require.NoError(t, err)
	require.Len(t, newestFirst, 3)
	assert.Equal(t, "third", newestFirst[0].Content)
	assert.Equal(t, "first", newestFirst[2].Content)

	oldestFirst, err := env.Services.Chats.MessagesBetween(ctx, "bob@x.com", "ANN@x.com")
	require.NoError(t, err)
	require.Len(t, oldestFirst, 3)
	assert.Equal(t, "first", oldestFirst[0].Content)
	assert.Equal(t, "third", oldestFirst[2].Content)

	lastMsg, err := env.Services.Chats.LastMessage(ctx, first.ChatID)
	require.NoError(t, err)
	assert.Equal(t, last.MessageID, lastMsg.MessageID)
}

func TestOtherUserAccount(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()
	u := newChatUsers(t, env)

	chatID, err := env.Services.Chats.StartNewChat(ctx, u.ann.AccountID, u.bob.AccountID)
	require.NoError(t, err)

	other, err := env.Services.Chats.OtherUserAccount(ctx, chatID, u.ann.AccountID)
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, "bob@x.com", other.Email)

	_, err = env.Services.Chats.OtherUserAccount(ctx, 9999, u.ann.AccountID)
	assert.ErrorIs(t, err, apperrors.ErrChatNotFound)
}

func TestDeleteChatCompletely(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()
	u := newChatUsers(t, env)

	msg := send(t, env, u.ann, u.bob, "bye")
	send(t, env, u.bob, u.ann, "bye bye")

	require.NoError(t, env.Services.Chats.DeleteChatCompletely(ctx, msg.ChatID))

	messages, err := env.Services.Chats.MessagesForChat(ctx, msg.ChatID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	_, _, err = env.Services.Chats.Participants(ctx, msg.ChatID)
	assert.ErrorIs(t, err, apperrors.ErrChatNotFound)

	recent, err := env.Services.Chats.RecentChats(ctx, u.ann.AccountID, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestObserveRecentChatsFollowsNewMessages(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()
	u := newChatUsers(t, env)

	sub := env.Services.Chats.ObserveRecentChats(ctx, u.bob.AccountID, 0)
	defer sub.Close()
	assert.Empty(t, testutil.Next(t, sub))

	send(t, env, u.ann, u.bob, "are you there?")

	recent := testutil.Eventually(t, sub, func(list []*model.Message) bool { return len(list) == 1 })
	assert.Equal(t, "are you there?", recent[0].Content)
}
