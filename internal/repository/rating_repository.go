package repository

import (
	"context"
	"fmt"

	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository/base"
)

type RatingRepository struct {
	*base.Repository
}

func NewRatingRepository(r *base.Repository) *RatingRepository {
	return &RatingRepository{Repository: r}
}

const ratingColumns = `id, friend_email, rater_email, rating, rated_at`

func scanRating(row scanner) (*model.FriendRating, error) {
	var (
		fr      model.FriendRating
		ratedAt int64
	)
	if err := row.Scan(&fr.ID, &fr.FriendEmail, &fr.RaterEmail, &fr.Rating, &ratedAt); err != nil {
		return nil, err
	}
	fr.Timestamp = fromMillis(ratedAt)
	return &fr, nil
}

// Insert always adds a new row and fills ID.
func (r *RatingRepository) Insert(ctx context.Context, fr *model.FriendRating) error {
	query := `
		INSERT INTO friend_ratings (friend_email, rater_email, rating, rated_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`

	err := r.QueryRow(ctx, query, fr.FriendEmail, fr.RaterEmail, fr.Rating, toMillis(fr.Timestamp)).Scan(&fr.ID)
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	r.Touch(TableFriendRatings)

	return nil
}

// DeleteByPair removes every rating rater gave friend.
func (r *RatingRepository) DeleteByPair(ctx context.Context, friendEmail, raterEmail string) error {
	query := `DELETE FROM friend_ratings WHERE friend_email = ? AND rater_email = ?`

	if _, err := r.ExecAffected(ctx, TableFriendRatings, query, friendEmail, raterEmail); err != nil {
		return fmt.Errorf("delete ratings: %w", err)
	}
	return nil
}

// Aggregate returns the plain mean over every row for email and the row count.
// Repeated ratings by one rater each count.
func (r *RatingRepository) Aggregate(ctx context.Context, email string) (float64, int, error) {
	query := `SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM friend_ratings WHERE friend_email = ?`

	var (
		avg   float64
		count int
	)
	if err := r.QueryRow(ctx, query, email).Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("aggregate ratings: %w", err)
	}

	return avg, count, nil
}

// Averages returns the mean rating of every rated user.
func (r *RatingRepository) Averages(ctx context.Context) ([]model.FriendAverage, error) {
	query := `
		SELECT friend_email, AVG(rating)
		FROM friend_ratings
		GROUP BY friend_email
		ORDER BY friend_email
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list average ratings: %w", err)
	}

	averages, err := collect(rows, func(row scanner) (model.FriendAverage, error) {
		var fa model.FriendAverage
		err := row.Scan(&fa.Email, &fa.Average)
		return fa, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan average ratings: %w", err)
	}

	return averages, nil
}

// Latest returns the newest rating rater gave friend, or nil.
func (r *RatingRepository) Latest(ctx context.Context, friendEmail, raterEmail string) (*model.FriendRating, error) {
	query := `
		SELECT ` + ratingColumns + `
		FROM friend_ratings
		WHERE friend_email = ? AND rater_email = ?
		ORDER BY rated_at DESC, id DESC
		LIMIT 1
	`

	fr, err := scanRating(r.QueryRow(ctx, query, friendEmail, raterEmail))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest rating: %w", err)
	}

	return fr, nil
}

// ByRater lists the ratings rater gave, newest first.
func (r *RatingRepository) ByRater(ctx context.Context, raterEmail string) ([]*model.FriendRating, error) {
	query := `
		SELECT ` + ratingColumns + `
		FROM friend_ratings
		WHERE rater_email = ?
		ORDER BY rated_at DESC, id DESC
	`

	rows, err := r.Query(ctx, query, raterEmail)
	if err != nil {
		return nil, fmt.Errorf("list ratings by rater: %w", err)
	}

	ratings, err := collect(rows, scanRating)
	if err != nil {
		return nil, fmt.Errorf("scan ratings by rater: %w", err)
	}

	return ratings, nil
}
