package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/languagebuddy/buddy/internal/apperrors"
	"github.com/languagebuddy/buddy/internal/metrics"
	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository"
	"github.com/languagebuddy/buddy/internal/repository/base"
	"github.com/languagebuddy/buddy/internal/watch"
)

type FriendService struct {
	core
	onePerRater bool
}

func NewFriendService(db *base.DB, onePerRater bool, m *metrics.Metrics, logger *zap.Logger) *FriendService {
	return &FriendService{
		core:        newCore(db, m, logger),
		onePerRater: onePerRater,
	}
}

// ============ Requests ============

// SendRequest creates a pending request. A pending request from the same
// sender to the same recipient is returned instead of creating another.
func (s *FriendService) SendRequest(ctx context.Context, from, to string) (_ *model.FriendRequest, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("friend_send_request", start, err) }()

	from = model.NormalizeEmail(from)
	to = model.NormalizeEmail(to)

	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: both emails are required", apperrors.ErrValidation)
	}
	if from == to {
		return nil, apperrors.ErrSelfRelation
	}

	var req *model.FriendRequest
	err = s.inTx(ctx, func(st *repository.Store) error {
		friendship, err := st.Friendships.Get(ctx, from, to)
		if err != nil {
			return err
		}
		if friendship != nil {
			return apperrors.ErrAlreadyExists
		}

		req, err = st.Requests.FindPending(ctx, from, to)
		if err != nil || req != nil {
			return err
		}

		req = &model.FriendRequest{
			FromEmail: from,
			ToEmail:   to,
			Status:    model.RequestStatusPending,
		}
		return st.Requests.Create(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("send friend request: %w", err)
	}

	s.logger.Info("Friend request sent",
		zap.Int64("request_id", req.RequestID),
		zap.String("from", from),
		zap.String("to", to),
	)

	return req, nil
}

// Accept turns a pending request into a friendship. The friendship is
// stored once per pair and the request becomes accepted in the same
// transaction. Accepting a request that is no longer pending fails with
// ErrInvalidTransition.
func (s *FriendService) Accept(ctx context.Context, requestID int64) (_ *model.Friendship, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("friend_accept", start, err) }()

	var friendship *model.Friendship
	err = s.inTx(ctx, func(st *repository.Store) error {
		req, err := st.Requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperrors.ErrRequestNotFound
		}
		if !model.CanTransition(req.Status, model.RequestStatusAccepted) {
			return apperrors.ErrInvalidTransition
		}

		if _, err := st.Friendships.Insert(ctx, req.FromEmail, req.ToEmail); err != nil {
			return err
		}

		ok, err := st.Requests.UpdateStatus(ctx, requestID, model.RequestStatusAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrInvalidTransition
		}

		friendship, err = st.Friendships.Get(ctx, req.FromEmail, req.ToEmail)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("accept friend request: %w", err)
	}

	s.logger.Info("Friend request accepted",
		zap.Int64("request_id", requestID),
		zap.String("user1", friendship.User1Email),
		zap.String("user2", friendship.User2Email),
	)

	return friendship, nil
}

// Decline marks a pending request declined.
func (s *FriendService) Decline(ctx context.Context, requestID int64) (err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("friend_decline", start, err) }()

	ok, err := s.store.Requests.UpdateStatus(ctx, requestID, model.RequestStatusDeclined)
	if err != nil {
		return fmt.Errorf("decline friend request: %w", err)
	}
	if !ok {
		req, err := s.store.Requests.GetByID(ctx, requestID)
		if err != nil {
			return fmt.Errorf("decline friend request: %w", err)
		}
		if req == nil {
			return apperrors.ErrRequestNotFound
		}
		return apperrors.ErrInvalidTransition
	}

	s.logger.Info("Friend request declined", zap.Int64("request_id", requestID))

	return nil
}

// GetRequest returns nil when the request does not exist.
func (s *FriendService) GetRequest(ctx context.Context, requestID int64) (*model.FriendRequest, error) {
	return s.store.Requests.GetByID(ctx, requestID)
}

// IncomingRequests lists every request addressed to email, newest first.
// Answered requests stay listed so callers can show their outcome.
func (s *FriendService) IncomingRequests(ctx context.Context, email string) ([]*model.FriendRequest, error) {
	return s.store.Requests.Incoming(ctx, model.NormalizeEmail(email))
}

// OutgoingRequests lists every request email sent, newest first.
func (s *FriendService) OutgoingRequests(ctx context.Context, email string) ([]*model.FriendRequest, error) {
	return s.store.Requests.Outgoing(ctx, model.NormalizeEmail(email))
}

func (s *FriendService) ObserveIncomingRequests(ctx context.Context, email string) *watch.Subscription[[]*model.FriendRequest] {
	return observe(ctx, &s.core, []string{repository.TableFriendRequests}, func(ctx context.Context) ([]*model.FriendRequest, error) {
		return s.IncomingRequests(ctx, email)
	})
}

func (s *FriendService) ObserveOutgoingRequests(ctx context.Context, email string) *watch.Subscription[[]*model.FriendRequest] {
	return observe(ctx, &s.core, []string{repository.TableFriendRequests}, func(ctx context.Context) ([]*model.FriendRequest, error) {
		return s.OutgoingRequests(ctx, email)
	})
}

// ============ Friendships ============

// Friends returns every friendship email is part of. Both members see the same rows.
func (s *FriendService) Friends(ctx context.Context, email string) ([]*model.Friendship, error) {
	return s.store.Friendships.ListFor(ctx, model.NormalizeEmail(email))
}

func (s *FriendService) ObserveFriends(ctx context.Context, email string) *watch.Subscription[[]*model.Friendship] {
	return observe(ctx, &s.core, []string{repository.TableFriendships}, func(ctx context.Context) ([]*model.Friendship, error) {
		return s.Friends(ctx, email)
	})
}

// AreFriends reports whether two users share a friendship.
func (s *FriendService) AreFriends(ctx context.Context, a, b string) (bool, error) {
	f, err := s.store.Friendships.Get(ctx, model.NormalizeEmail(a), model.NormalizeEmail(b))
	if err != nil {
		return false, err
	}
	return f != nil, nil
}

// ============ Ratings ============

// Rate records a 1 to 5 rating and refreshes the ratee's cached average in
// the same transaction. By default every call adds a row; with one rating
// per rater the previous rows of that rater are replaced.
func (s *FriendService) Rate(ctx context.Context, friendEmail, raterEmail string, rating float64) (_ *model.FriendRating, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("friend_rate", start, err) }()

	friendEmail = model.NormalizeEmail(friendEmail)
	raterEmail = model.NormalizeEmail(raterEmail)

	if rating < model.MinRating || rating > model.MaxRating {
		return nil, apperrors.ErrInvalidRating
	}
	if friendEmail == raterEmail {
		return nil, apperrors.ErrSelfRelation
	}

	fr := &model.FriendRating{
		FriendEmail: friendEmail,
		RaterEmail:  raterEmail,
		Rating:      rating,
		Timestamp:   s.now(),
	}

	var (
		avg   float64
		count int
	)
	err = s.inTx(ctx, func(st *repository.Store) error {
		if s.onePerRater {
			if err := st.Ratings.DeleteByPair(ctx, friendEmail, raterEmail); err != nil {
				return err
			}
		}
		if err := st.Ratings.Insert(ctx, fr); err != nil {
			return err
		}

		var err error
		avg, count, err = st.Ratings.Aggregate(ctx, friendEmail)
		if err != nil {
			return err
		}
		return st.Accounts.UpdateRating(ctx, friendEmail, avg, count)
	})
	if err != nil {
		return nil, fmt.Errorf("rate friend: %w", err)
	}

	s.logger.Info("Friend rated",
		zap.String("friend", friendEmail),
		zap.String("rater", raterEmail),
		zap.Float64("rating", rating),
		zap.Float64("average", avg),
		zap.Int("count", count),
	)

	return fr, nil
}

// AverageRating is the plain mean over every rating row of email. ok is
// false when nobody rated email yet.
func (s *FriendService) AverageRating(ctx context.Context, email string) (avg float64, ok bool, err error) {
	avg, count, err := s.store.Ratings.Aggregate(ctx, model.NormalizeEmail(email))
	if err != nil {
		return 0, false, err
	}
	return avg, count > 0, nil
}

// AverageRatings returns the mean rating of every rated user.
func (s *FriendService) AverageRatings(ctx context.Context) ([]model.FriendAverage, error) {
	return s.store.Ratings.Averages(ctx)
}

func (s *FriendService) ObserveAverageRatings(ctx context.Context) *watch.Subscription[[]model.FriendAverage] {
	return observe(ctx, &s.core, []string{repository.TableFriendRatings}, s.AverageRatings)
}

// UserRatingForFriend returns the newest rating rater gave friend, or nil.
func (s *FriendService) UserRatingForFriend(ctx context.Context, friendEmail, raterEmail string) (*model.FriendRating, error) {
	return s.store.Ratings.Latest(ctx, model.NormalizeEmail(friendEmail), model.NormalizeEmail(raterEmail))
}

func (s *FriendService) ObserveUserRatingForFriend(ctx context.Context, friendEmail, raterEmail string) *watch.Subscription[*model.FriendRating] {
	return observe(ctx, &s.core, []string{repository.TableFriendRatings}, func(ctx context.Context) (*model.FriendRating, error) {
		return s.UserRatingForFriend(ctx, friendEmail, raterEmail)
	})
}

// RatingsByRater lists the ratings rater gave, newest first.
func (s *FriendService) RatingsByRater(ctx context.Context, raterEmail string) ([]*model.FriendRating, error) {
	return s.store.Ratings.ByRater(ctx, model.NormalizeEmail(raterEmail))
}

func (s *FriendService) ObserveRatingsByRater(ctx context.Context, raterEmail string) *watch.Subscription[[]*model.FriendRating] {
	return observe(ctx, &s.core, []string{repository.TableFriendRatings}, func(ctx context.Context) ([]*model.FriendRating, error) {
		return s.RatingsByRater(ctx, raterEmail)
	})
}
