package repository

import (
	"context"
	"fmt"

	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository/base"
)

type FriendRequestRepository struct {
	*base.Repository
}

func NewFriendRequestRepository(r *base.Repository) *FriendRequestRepository {
	return &FriendRequestRepository{Repository: r}
}

const requestColumns = `request_id, from_email, to_email, status`

func scanRequest(row scanner) (*model.FriendRequest, error) {
	var req model.FriendRequest
	if err := row.Scan(&req.RequestID, &req.FromEmail, &req.ToEmail, &req.Status); err != nil {
		return nil, err
	}
	return &req, nil
}

// Create inserts the request and fills RequestID.
func (r *FriendRequestRepository) Create(ctx context.Context, req *model.FriendRequest) error {
	query := `
		INSERT INTO friend_requests (from_email, to_email, status)
		VALUES (?, ?, ?)
		RETURNING request_id
	`

	if err := r.QueryRow(ctx, query, req.FromEmail, req.ToEmail, req.Status).Scan(&req.RequestID); err != nil {
		return fmt.Errorf("create friend request: %w", err)
	}
	r.Touch(TableFriendRequests)

	return nil
}

// GetByID returns nil when the request does not exist.
func (r *FriendRequestRepository) GetByID(ctx context.Context, id int64) (*model.FriendRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM friend_requests WHERE request_id = ?`

	req, err := scanRequest(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get friend request: %w", err)
	}

	return req, nil
}

// FindPending returns the oldest pending request from one user to another.
func (r *FriendRequestRepository) FindPending(ctx context.Context, from, to string) (*model.FriendRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM friend_requests
		WHERE from_email = ? AND to_email = ? AND status = ?
		ORDER BY request_id
		LIMIT 1
	`

	req, err := scanRequest(r.QueryRow(ctx, query, from, to, model.RequestStatusPending))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending friend request: %w", err)
	}

	return req, nil
}

// UpdateStatus moves a pending request to status. It reports false when the
// request is missing or no longer pending.
func (r *FriendRequestRepository) UpdateStatus(ctx context.Context, id int64, status string) (bool, error) {
	query := `UPDATE friend_requests SET status = ? WHERE request_id = ? AND status = ?`

	n, err := r.ExecAffected(ctx, TableFriendRequests, query, status, id, model.RequestStatusPending)
	if err != nil {
		return false, fmt.Errorf("update friend request status: %w", err)
	}

	return n > 0, nil
}

// Incoming lists every request addressed to email, whatever its status.
func (r *FriendRequestRepository) Incoming(ctx context.Context, email string) ([]*model.FriendRequest, error) {
	return r.list(ctx, "incoming", `to_email = ?`, email)
}

// Outgoing lists every request sent by email, whatever its status.
func (r *FriendRequestRepository) Outgoing(ctx context.Context, email string) ([]*model.FriendRequest, error) {
	return r.list(ctx, "outgoing", `from_email = ?`, email)
}

func (r *FriendRequestRepository) list(ctx context.Context, kind, cond, email string) ([]*model.FriendRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM friend_requests
		WHERE ` + cond + `
		ORDER BY request_id DESC
	`

	rows, err := r.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("list %s friend requests: %w", kind, err)
	}

	requests, err := collect(rows, scanRequest)
	if err != nil {
		return nil, fmt.Errorf("scan %s friend requests: %w", kind, err)
	}

	return requests, nil
}
