package repository

import (
	"context"
	"fmt"

	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository/base"
)

type InviteRepository struct {
	*base.Repository
}

func NewInviteRepository(r *base.Repository) *InviteRepository {
	return &InviteRepository{Repository: r}
}

const inviteColumns = `
	id, sender_email, receiver_email, title, COALESCE(language, ''), session_date, session_time,
	duration, COALESCE(description, ''), status, created_at
`

func scanInvite(row scanner) (*model.SessionInvite, error) {
	var (
		inv       model.SessionInvite
		createdAt int64
	)
	err := row.Scan(
		&inv.ID,
		&inv.SenderEmail,
		&inv.ReceiverEmail,
		&inv.Title,
		&inv.Language,
		&inv.Date,
		&inv.Time,
		&inv.Duration,
		&inv.Description,
		&inv.Status,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	inv.CreatedAt = fromMillis(createdAt)
	return &inv, nil
}

// Create inserts the invite and fills ID.
func (r *InviteRepository) Create(ctx context.Context, inv *model.SessionInvite) error {
	query := `
		INSERT INTO session_invites (sender_email, receiver_email, title, language, session_date, session_time,
			duration, description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.QueryRow(
		ctx, query,
		inv.SenderEmail,
		inv.ReceiverEmail,
		inv.Title,
		inv.Language,
		inv.Date,
		inv.Time,
		inv.Duration,
		inv.Description,
		inv.Status,
		toMillis(inv.CreatedAt),
	).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	r.Touch(TableSessionInvites)

	return nil
}

// GetByID returns nil when the invite does not exist.
func (r *InviteRepository) GetByID(ctx context.Context, id int64) (*model.SessionInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM session_invites WHERE id = ?`

	inv, err := scanInvite(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invite: %w", err)
	}

	return inv, nil
}

// PendingFor lists the pending invites addressed to email, newest first.
func (r *InviteRepository) PendingFor(ctx context.Context, email string) ([]*model.SessionInvite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM session_invites
		WHERE receiver_email = ? AND status = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.Query(ctx, query, email, model.InviteStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list received invites: %w", err)
	}

	invites, err := collect(rows, scanInvite)
	if err != nil {
		return nil, fmt.Errorf("scan received invites: %w", err)
	}

	return invites, nil
}

// SentBy lists every invite email sent, newest first.
func (r *InviteRepository) SentBy(ctx context.Context, email string) ([]*model.SessionInvite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM session_invites
		WHERE sender_email = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("list sent invites: %w", err)
	}

	invites, err := collect(rows, scanInvite)
	if err != nil {
		return nil, fmt.Errorf("scan sent invites: %w", err)
	}

	return invites, nil
}

// UpdateStatus moves a pending invite to status. It reports false when the
// invite is missing or already answered.
func (r *InviteRepository) UpdateStatus(ctx context.Context, id int64, status string) (bool, error) {
	query := `UPDATE session_invites SET status = ? WHERE id = ? AND status = ?`

	n, err := r.ExecAffected(ctx, TableSessionInvites, query, status, id, model.InviteStatusPending)
	if err != nil {
		return false, fmt.Errorf("update invite status: %w", err)
	}

	return n > 0, nil
}

func (r *InviteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.ExecAffected(ctx, TableSessionInvites, `DELETE FROM session_invites WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete invite: %w", err)
	}
	return n > 0, nil
}
