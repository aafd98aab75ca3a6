package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/languagebuddy/buddy/internal/apperrors"
	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/service"
	"github.com/languagebuddy/buddy/internal/testutil"
)

func mockInterview(sender, receiver string) model.SessionInvite {
	return model.SessionInvite{
		SenderEmail:   sender,
		ReceiverEmail: receiver,
		Title:         "Mock interview",
		Language:      "German",
		Date:          "2024-03-05",
		Time:          "18:30",
		Duration:      "45 min",
	}
}

func TestApproveInviteCreatesSessionAndNotifies(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	env.CreateAccount(t, "a@x.com", "Ann")
	b := env.CreateAccount(t, "b@x.com", "Bob")

	inv, err := env.Services.Invites.SendInvite(ctx, mockInterview("a@x.com", "b@x.com"))
	require.NoError(t, err)
	assert.Equal(t, model.InviteStatusPending, inv.Status)

	pending, err := env.Services.Invites.InvitesForUser(ctx, "b@x.com")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	session, err := env.Services.Invites.Approve(ctx, model.PrincipalFor(b), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", session.HostEmail)
	assert.Equal(t, "Mock interview", session.Title)

	members, err := env.Services.Sessions.Members(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, members)

	joined, err := env.Services.Sessions.UserSessions(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, "Bob", joined[0].HostName)

	stored, err := env.Services.Invites.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InviteStatusApproved, stored.Status)

	pending, err = env.Services.Invites.InvitesForUser(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Empty(t, pending)

	notes, err := env.Services.Invites.NotificationsForUser(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Bob accepted your event on 2024-03-05", notes[0].Message)

	_, err = env.Services.Invites.Approve(ctx, model.PrincipalFor(b), inv.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestApproveRequiresReceiver(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	inv, err := env.Services.Invites.SendInvite(ctx, mockInterview("a@x.com", "b@x.com"))
	require.NoError(t, err)

	_, err = env.Services.Invites.Approve(ctx, model.Principal{Email: "c@x.com"}, inv.ID)
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = env.Services.Invites.Approve(ctx, model.Principal{Email: "b@x.com"}, 9999)
	require.ErrorIs(t, err, apperrors.ErrInviteNotFound)

	stored, err := env.Services.Invites.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InviteStatusPending, stored.Status)

	sessions, err := env.Services.Sessions.UserSessions(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestDeclineInviteNotifiesSender(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	inv, err := env.Services.Invites.SendInvite(ctx, mockInterview("a@x.com", "b@x.com"))
	require.NoError(t, err)

	require.NoError(t, env.Services.Invites.Decline(ctx, model.Principal{Email: "b@x.com"}, inv.ID))

	stored, err := env.Services.Invites.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InviteStatusDeclined, stored.Status)

	notes, err := env.Services.Invites.NotificationsForUser(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "b@x.com declined your event on 2024-03-05", notes[0].Message)

	require.NoError(t, env.Services.Invites.DeleteNotification(ctx, notes[0].ID))
	assert.ErrorIs(t, env.Services.Invites.DeleteNotification(ctx, notes[0].ID), apperrors.ErrNotificationMissing)
}

func TestSendInviteValidation(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	_, err := env.Services.Invites.SendInvite(ctx, mockInterview("a@x.com", "A@x.com"))
	assert.ErrorIs(t, err, apperrors.ErrSelfRelation)

	bad := mockInterview("a@x.com", "b@x.com")
	bad.Title = ""
	_, err = env.Services.Invites.SendInvite(ctx, bad)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	bad = mockInterview("not-an-email", "b@x.com")
	_, err = env.Services.Invites.SendInvite(ctx, bad)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateInviteStatus(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	inv, err := env.Services.Invites.SendInvite(ctx, mockInterview("a@x.com", "b@x.com"))
	require.NoError(t, err)

	assert.ErrorIs(t, env.Services.Invites.UpdateStatus(ctx, inv.ID, "maybe"), apperrors.ErrValidation)
	require.NoError(t, env.Services.Invites.UpdateStatus(ctx, inv.ID, model.InviteStatusDeclined))
	assert.ErrorIs(t, env.Services.Invites.UpdateStatus(ctx, inv.ID, model.InviteStatusApproved), apperrors.ErrInvalidTransition)
	assert.ErrorIs(t, env.Services.Invites.UpdateStatus(ctx, 9999, model.InviteStatusApproved), apperrors.ErrInviteNotFound)

	sent, err := env.Services.Invites.InvitesSentByUser(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, model.InviteStatusDeclined, sent[0].Status)

	require.NoError(t, env.Services.Invites.DeleteInvite(ctx, inv.ID))
	assert.ErrorIs(t, env.Services.Invites.DeleteInvite(ctx, inv.ID), apperrors.ErrInviteNotFound)
}

func TestObserveNotifications(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	sub := env.Services.Invites.ObserveNotificationsForUser(ctx, "a@x.com")
	defer sub.Close()
	assert.Empty(t, testutil.Next(t, sub))

	_, err := env.Services.Invites.InsertNotification(ctx, model.Notification{UserEmail: "A@x.com", Message: "hello"})
	require.NoError(t, err)

	notes := testutil.Eventually(t, sub, func(list []*model.Notification) bool { return len(list) == 1 })
	assert.Equal(t, "hello", notes[0].Message)
}
