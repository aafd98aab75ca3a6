package service

import (
	"context"
	"fmt"
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

type InviteService struct {
	core
}

func NewInviteService(db *base.DB, m *metrics.Metrics, logger *zap.Logger) *InviteService {
	return &InviteService{core: newCore(db, m, logger)}
}

// ============ Invites ============

// SendInvite stores a new pending invite.
func (s *InviteService) SendInvite(ctx context.Context, inv model.SessionInvite) (_ *model.SessionInvite, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("invite_send", start, err) }()

	inv.SenderEmail = model.NormalizeEmail(inv.SenderEmail)
	inv.ReceiverEmail = model.NormalizeEmail(inv.ReceiverEmail)

	if err := validateStruct(inv); err != nil {
		return nil, err
	}
	if inv.SenderEmail == inv.ReceiverEmail {
		return nil, apperrors.ErrSelfRelation
	}

	inv.ID = 0
	inv.Status = model.InviteStatusPending
	inv.CreatedAt = s.now()

	if err := s.store.Invites.Create(ctx, &inv); err != nil {
		return nil, fmt.Errorf("send invite: %w", err)
	}

	s.logger.Info("Invite sent",
		zap.Int64("invite_id", inv.ID),
		zap.String("sender", inv.SenderEmail),
		zap.String("receiver", inv.ReceiverEmail),
	)

	return &inv, nil
}

// GetInvite returns nil when the invite does not exist.
func (s *InviteService) GetInvite(ctx context.Context, id int64) (*model.SessionInvite, error) {
	return s.store.Invites.GetByID(ctx, id)
}

// InvitesForUser lists the pending invites addressed to email, newest first.
func (s *InviteService) InvitesForUser(ctx context.Context, email string) ([]*model.SessionInvite, error) {
	return s.store.Invites.PendingFor(ctx, model.NormalizeEmail(email))
}

// InvitesSentByUser lists every invite email sent, newest first.
func (s *InviteService) InvitesSentByUser(ctx context.Context, email string) ([]*model.SessionInvite, error) {
	return s.store.Invites.SentBy(ctx, model.NormalizeEmail(email))
}

func (s *InviteService) ObserveInvitesForUser(ctx context.Context, email string) *watch.Subscription[[]*model.SessionInvite] {
	return observe(ctx, &s.core, []string{repository.TableSessionInvites}, func(ctx context.Context) ([]*model.SessionInvite, error) {
		return s.InvitesForUser(ctx, email)
	})
}

func (s *InviteService) ObserveInvitesSentByUser(ctx context.Context, email string) *watch.Subscription[[]*model.SessionInvite] {
	return observe(ctx, &s.core, []string{repository.TableSessionInvites}, func(ctx context.Context) ([]*model.SessionInvite, error) {
		return s.InvitesSentByUser(ctx, email)
	})
}

// UpdateStatus answers a pending invite without side effects. Answered
// invites cannot change again.
func (s *InviteService) UpdateStatus(ctx context.Context, id int64, status string) (err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("invite_update_status", start, err) }()

	if status != model.InviteStatusApproved && status != model.InviteStatusDeclined {
		return fmt.Errorf("%w: unknown invite status %q", apperrors.ErrValidation, status)
	}

	err = s.inTx(ctx, func(st *repository.Store) error {
		return answerInvite(ctx, st, id, status)
	})
	if err != nil {
		return fmt.Errorf("update invite status: %w", err)
	}

	s.logger.Info("Invite status updated",
		zap.Int64("invite_id", id),
		zap.String("status", status),
	)

	return nil
}

func answerInvite(ctx context.Context, st *repository.Store, id int64, status string) error {
	ok, err := st.Invites.UpdateStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	inv, err := st.Invites.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inv == nil {
		return apperrors.ErrInviteNotFound
	}
	return apperrors.ErrInvalidTransition
}

// loadPendingFor fetches an invite the approver is allowed to answer.
func loadPendingFor(ctx context.Context, st *repository.Store, approver model.Principal, id int64) (*model.SessionInvite, error) {
	inv, err := st.Invites.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperrors.ErrInviteNotFound
	}
	if inv.ReceiverEmail != model.NormalizeEmail(approver.Email) {
		return nil, apperrors.ErrPermissionDenied
	}
	if !inv.IsPending() {
		return nil, apperrors.ErrInvalidTransition
	}
	return inv, nil
}

// Approve accepts an invite in one transaction: a new session hosted by the
// approver is created with the approver and the sender joined, the invite
// becomes approved and the sender is notified.
func (s *InviteService) Approve(ctx context.Context, approver model.Principal, inviteID int64) (_ *model.Session, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("invite_approve", start, err) }()

	hostEmail := model.NormalizeEmail(approver.Email)

	var (
		session model.Session
		inv     *model.SessionInvite
	)
	err = s.inTx(ctx, func(st *repository.Store) error {
		var err error
		inv, err = loadPendingFor(ctx, st, approver, inviteID)
		if err != nil {
			return err
		}

		session = inv.ToSession(uuid.NewString(), hostEmail)
		if err := st.Sessions.Upsert(ctx, &session); err != nil {
			return err
		}
		if err := st.Sessions.Join(ctx, hostEmail, session.SessionID); err != nil {
			return err
		}
		if err := st.Sessions.Join(ctx, inv.SenderEmail, session.SessionID); err != nil {
			return err
		}

		if err := answerInvite(ctx, st, inviteID, model.InviteStatusApproved); err != nil {
			return err
		}

		return st.Notifications.Create(ctx, &model.Notification{
			UserEmail: inv.SenderEmail,
			Message:   fmt.Sprintf("%s accepted your event on %s", approver.Label(), inv.Date),
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("approve invite: %w", err)
	}

	s.logger.Info("Invite approved",
		zap.Int64("invite_id", inviteID),
		zap.String("session_id", session.SessionID),
		zap.String("host", hostEmail),
		zap.String("sender", inv.SenderEmail),
	)

	return &session, nil
}

// Decline rejects an invite and notifies the sender, in one transaction.
func (s *InviteService) Decline(ctx context.Context, approver model.Principal, inviteID int64) (err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("invite_decline", start, err) }()

	err = s.inTx(ctx, func(st *repository.Store) error {
		inv, err := loadPendingFor(ctx, st, approver, inviteID)
		if err != nil {
			return err
		}

		if err := answerInvite(ctx, st, inviteID, model.InviteStatusDeclined); err != nil {
			return err
		}

		return st.Notifications.Create(ctx, &model.Notification{
			UserEmail: inv.SenderEmail,
			Message:   fmt.Sprintf("%s declined your event on %s", approver.Label(), inv.Date),
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return fmt.Errorf("decline invite: %w", err)
	}

	s.logger.Info("Invite declined", zap.Int64("invite_id", inviteID))

	return nil
}

func (s *InviteService) DeleteInvite(ctx context.Context, id int64) error {
	deleted, err := s.store.Invites.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	if !deleted {
		return apperrors.ErrInviteNotFound
	}

	s.logger.Info("Invite deleted", zap.Int64("invite_id", id))
	return nil
}

// ============ Notifications ============

func (s *InviteService) InsertNotification(ctx context.Context, n model.Notification) (*model.Notification, error) {
	n.UserEmail = model.NormalizeEmail(n.UserEmail)
	if n.UserEmail == "" {
		return nil, fmt.Errorf("%w: notification needs an addressee", apperrors.ErrValidation)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	if err := s.store.Notifications.Create(ctx, &n); err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	return &n, nil
}

// NotificationsForUser lists the notifications addressed to email, newest first.
func (s *InviteService) NotificationsForUser(ctx context.Context, email string) ([]*model.Notification, error) {
	return s.store.Notifications.ListFor(ctx, model.NormalizeEmail(email))
}

func (s *InviteService) ObserveNotificationsForUser(ctx context.Context, email string) *watch.Subscription[[]*model.Notification] {
	return observe(ctx, &s.core, []string{repository.TableNotifications}, func(ctx context.Context) ([]*model.Notification, error) {
		return s.NotificationsForUser(ctx, email)
	})
}

// DeleteNotification dismisses one notification.
func (s *InviteService) DeleteNotification(ctx context.Context, id int64) error {
	deleted, err := s.store.Notifications.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if !deleted {
		return apperrors.ErrNotificationMissing
	}
	return nil
}
