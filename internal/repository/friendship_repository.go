package repository

import (
	"context"
	"fmt"

	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository/base"
)

type FriendshipRepository struct {
	*base.Repository
}

func NewFriendshipRepository(r *base.Repository) *FriendshipRepository {
	return &FriendshipRepository{Repository: r}
}

func scanFriendship(row scanner) (*model.Friendship, error) {
	var f model.Friendship
	if err := row.Scan(&f.ID, &f.User1Email, &f.User2Email); err != nil {
		return nil, err
	}
	return &f, nil
}

// Insert stores the canonical pair. It reports false when the pair already exists.
func (r *FriendshipRepository) Insert(ctx context.Context, a, b string) (bool, error) {
	f := model.NewFriendship(a, b)

	query := `
		INSERT INTO friendships (user1_email, user2_email)
		VALUES (?, ?)
		ON CONFLICT (user1_email, user2_email) DO NOTHING
	`

	n, err := r.ExecAffected(ctx, TableFriendships, query, f.User1Email, f.User2Email)
	if err != nil {
		return false, fmt.Errorf("insert friendship: %w", err)
	}

	return n > 0, nil
}

// Get returns the friendship between two users in either order, or nil.
func (r *FriendshipRepository) Get(ctx context.Context, a, b string) (*model.Friendship, error) {
	u1, u2 := model.OrderEmails(a, b)

	query := `SELECT id, user1_email, user2_email FROM friendships WHERE user1_email = ? AND user2_email = ?`

	f, err := scanFriendship(r.QueryRow(ctx, query, u1, u2))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get friendship: %w", err)
	}

	return f, nil
}

// ListFor returns every friendship email is part of.
func (r *FriendshipRepository) ListFor(ctx context.Context, email string) ([]*model.Friendship, error) {
	query := `
		SELECT id, user1_email, user2_email
		FROM friendships
		WHERE user1_email = ? OR user2_email = ?
		ORDER BY id
	`

	rows, err := r.Query(ctx, query, email, email)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}

	friendships, err := collect(rows, scanFriendship)
	if err != nil {
		return nil, fmt.Errorf("scan friendships: %w", err)
	}

	return friendships, nil
}
