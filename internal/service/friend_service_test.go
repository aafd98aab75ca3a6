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

func befriend(t *testing.T, env *testutil.Env, from, to string) *model.Friendship {
	t.Helper()
	ctx := context.Background()

	req, err := env.Services.Friends.SendRequest(ctx, from, to)
	require.NoError(t, err)

	f, err := env.Services.Friends.Accept(ctx, req.RequestID)
	require.NoError(t, err)
	return f
}

func TestFriendsListedIdenticallyForBothMembers(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	env.CreateAccount(t, "a@x.com", "Ann")
	env.CreateAccount(t, "b@x.com", "Bob")

	befriend(t, env, "a@x.com", "b@x.com")

	forA, err := env.Services.Friends.Friends(ctx, "a@x.com")
	require.NoError(t, err)
	forB, err := env.Services.Friends.Friends(ctx, "b@x.com")
	require.NoError(t, err)

	require.Len(t, forA, 1)
	assert.Equal(t, "a@x.com", forA[0].User1Email)
	assert.Equal(t, "b@x.com", forA[0].User2Email)
	assert.Equal(t, forA, forB)

	ok, err := env.Services.Friends.AreFriends(ctx, "b@x.com", "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcceptStoresCanonicalPairOnce(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	req, err := env.Services.Friends.SendRequest(ctx, "zoe@x.com", "adam@x.com")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusPending, req.Status)

	f, err := env.Services.Friends.Accept(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "adam@x.com", f.User1Email)
	assert.Equal(t, "zoe@x.com", f.User2Email)

	stored, err := env.Services.Friends.GetRequest(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusAccepted, stored.Status)

	_, err = env.Services.Friends.Accept(ctx, req.RequestID)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	friends, err := env.Services.Friends.Friends(ctx, "zoe@x.com")
	require.NoError(t, err)
	assert.Len(t, friends, 1)

	_, err = env.Services.Friends.Accept(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)
}

func TestSendRequestRules(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	_, err := env.Services.Friends.SendRequest(ctx, "a@x.com", "A@x.com")
	require.ErrorIs(t, err, apperrors.ErrSelfRelation)

	first, err := env.Services.Friends.SendRequest(ctx, "a@x.com", "b@x.com")
	require.NoError(t, err)

	again, err := env.Services.Friends.SendRequest(ctx, "a@x.com", "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, first.RequestID, again.RequestID)

	outgoing, err := env.Services.Friends.OutgoingRequests(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, outgoing, 1)

	_, err = env.Services.Friends.Accept(ctx, first.RequestID)
	require.NoError(t, err)

	_, err = env.Services.Friends.SendRequest(ctx, "b@x.com", "a@x.com")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestDeclineRequest(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	req, err := env.Services.Friends.SendRequest(ctx, "a@x.com", "b@x.com")
	require.NoError(t, err)

	incoming, err := env.Services.Friends.IncomingRequests(ctx, "b@x.com")
	require.NoError(t, err)
	require.Len(t, incoming, 1)

	require.NoError(t, env.Services.Friends.Decline(ctx, req.RequestID))

	incoming, err = env.Services.Friends.IncomingRequests(ctx, "b@x.com")
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, model.RequestStatusDeclined, incoming[0].Status)

	outgoing, err := env.Services.Friends.OutgoingRequests(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, model.RequestStatusDeclined, outgoing[0].Status)

	assert.ErrorIs(t, env.Services.Friends.Decline(ctx, req.RequestID), apperrors.ErrInvalidTransition)
	assert.ErrorIs(t, env.Services.Friends.Decline(ctx, 9999), apperrors.ErrRequestNotFound)

	_, err = env.Services.Friends.Accept(ctx, req.RequestID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestObserveIncomingRequests(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	sub := env.Services.Friends.ObserveIncomingRequests(ctx, "b@x.com")
	defer sub.Close()
	assert.Empty(t, testutil.Next(t, sub))

	_, err := env.Services.Friends.SendRequest(ctx, "a@x.com", "b@x.com")
	require.NoError(t, err)

	list := testutil.Eventually(t, sub, func(list []*model.FriendRequest) bool { return len(list) == 1 })
	assert.Equal(t, "a@x.com", list[0].FromEmail)
}

func TestAverageRatingCountsEveryRow(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	env.CreateAccount(t, "b@x.com", "Bob")

	_, ok, err := env.Services.Friends.AverageRating(ctx, "b@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, r := range []float64{5, 4, 3} {
		_, err := env.Services.Friends.Rate(ctx, "b@x.com", "a@x.com", r)
		require.NoError(t, err)
	}
	_, err = env.Services.Friends.Rate(ctx, "b@x.com", "c@x.com", 2)
	require.NoError(t, err)

	avg, ok, err := env.Services.Friends.AverageRating(ctx, "b@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 3.5, avg, 1e-9)

	account, err := env.Services.Accounts.Get(ctx, "b@x.com")
	require.NoError(t, err)
	assert.InDelta(t, 3.5, account.Rating, 1e-9)
	assert.Equal(t, 4, account.RatingCount)

	latest, err := env.Services.Friends.UserRatingForFriend(ctx, "b@x.com", "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 3.0, latest.Rating)

	byA, err := env.Services.Friends.RatingsByRater(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, byA, 3)
}

func TestOnePerRaterReplacesPreviousRating(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{RatingsOnePerRater: true})
	ctx := context.Background()

	for _, r := range []float64{5, 1} {
		_, err := env.Services.Friends.Rate(ctx, "b@x.com", "a@x.com", r)
		require.NoError(t, err)
	}
	_, err := env.Services.Friends.Rate(ctx, "b@x.com", "c@x.com", 4)
	require.NoError(t, err)

	avg, ok, err := env.Services.Friends.AverageRating(ctx, "b@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 2.5, avg, 1e-9)

	averages, err := env.Services.Friends.AverageRatings(ctx)
	require.NoError(t, err)
	require.Len(t, averages, 1)
	assert.Equal(t, "b@x.com", averages[0].Email)
	assert.InDelta(t, 2.5, averages[0].Average, 1e-9)
}

func TestRateRejectsBadInput(t *testing.T) {
	env := testutil.NewEnv(t, service.Options{})
	ctx := context.Background()

	_, err := env.Services.Friends.Rate(ctx, "b@x.com", "a@x.com", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRating)

	_, err = env.Services.Friends.Rate(ctx, "b@x.com", "a@x.com", 5.5)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRating)

	_, err = env.Services.Friends.Rate(ctx, "a@x.com", "A@x.com", 3)
	assert.ErrorIs(t, err, apperrors.ErrSelfRelation)
}
