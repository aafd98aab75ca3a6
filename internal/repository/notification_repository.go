package repository

import (
	"context"
	"fmt"

	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository/base"
)

type NotificationRepository struct {
	*base.Repository
}

func NewNotificationRepository(r *base.Repository) *NotificationRepository {
	return &NotificationRepository{Repository: r}
}

// Create inserts the notification and fills ID.
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (user_email, message, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`

	if err := r.QueryRow(ctx, query, n.UserEmail, n.Message, toMillis(n.CreatedAt)).Scan(&n.ID); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	r.Touch(TableNotifications)

	return nil
}

// ListFor returns the notifications addressed to email, newest first.
func (r *NotificationRepository) ListFor(ctx context.Context, email string) ([]*model.Notification, error) {
	query := `
		SELECT id, user_email, message, created_at
		FROM notifications
		WHERE user_email = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	notifications, err := collect(rows, func(row scanner) (*model.Notification, error) {
		var (
			n         model.Notification
			createdAt int64
		)
		if err := row.Scan(&n.ID, &n.UserEmail, &n.Message, &createdAt); err != nil {
			return nil, err
		}
		n.CreatedAt = fromMillis(createdAt)
		return &n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}

	return notifications, nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.ExecAffected(ctx, TableNotifications, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	return n > 0, nil
}
