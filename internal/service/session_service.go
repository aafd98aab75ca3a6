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

var sessionTables = []string{
	repository.TableSessions,
	repository.TableSessionJoin,
	repository.TableAccounts,
}

type SessionService struct {
	core
}

func NewSessionService(db *base.DB, m *metrics.Metrics, logger *zap.Logger) *SessionService {
	return &SessionService{core: newCore(db, m, logger)}
}

// CreateOrUpdate stores the session and joins ownerEmail to it in one
// transaction. A new session gets a UUID and, when HostEmail is empty, is
// hosted by ownerEmail. Only the host may update an existing session.
func (s *SessionService) CreateOrUpdate(ctx context.Context, session model.Session, ownerEmail string) (_ *model.Session, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("session_create_or_update", start, err) }()

	ownerEmail = model.NormalizeEmail(ownerEmail)
	if err := validateStruct(session); err != nil {
		return nil, err
	}
	if session.SessionID == "" {
		session.SessionID = uuid.NewString()
	}
	if session.HostEmail == "" {
		session.HostEmail = ownerEmail
	}
	session.HostEmail = model.NormalizeEmail(session.HostEmail)

	err = s.inTx(ctx, func(st *repository.Store) error {
		existing, err := st.Sessions.GetByID(ctx, session.SessionID)
		if err != nil {
			return err
		}
		if existing != nil && !existing.IsHostedBy(ownerEmail) {
			return apperrors.ErrPermissionDenied
		}

		if err := st.Sessions.Upsert(ctx, &session); err != nil {
			return err
		}
		return st.Sessions.Join(ctx, ownerEmail, session.SessionID)
	})
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("Session saved",
		zap.String("session_id", session.SessionID),
		zap.String("host", session.HostEmail),
		zap.String("owner", ownerEmail),
	)

	return &session, nil
}

// Get returns nil when the session does not exist.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.store.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Join subscribes email to an existing session. Joining twice is a no-op.
func (s *SessionService) Join(ctx context.Context, email, sessionID string) (err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("session_join", start, err) }()

	email = model.NormalizeEmail(email)

	err = s.inTx(ctx, func(st *repository.Store) error {
		session, err := st.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return apperrors.ErrSessionNotFound
		}
		return st.Sessions.Join(ctx, email, sessionID)
	})
	if err != nil {
		return fmt.Errorf("join session: %w", err)
	}

	s.logger.Info("Joined session",
		zap.String("email", email),
		zap.String("session_id", sessionID),
	)

	return nil
}

// AddUser is Join under the name used when someone else adds the user.
func (s *SessionService) AddUser(ctx context.Context, email, sessionID string) error {
	return s.Join(ctx, email, sessionID)
}

// Leave removes the join row of email. The session itself stays, even when
// the host leaves; the orphan sweep removes it once nobody is joined.
func (s *SessionService) Leave(ctx context.Context, email, sessionID string) (err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("session_leave", start, err) }()

	email = model.NormalizeEmail(email)

	left, err := s.store.Sessions.Leave(ctx, email, sessionID)
	if err != nil {
		return fmt.Errorf("leave session: %w", err)
	}

	s.logger.Info("Left session",
		zap.String("email", email),
		zap.String("session_id", sessionID),
		zap.Bool("was_joined", left),
	)

	return nil
}

// Delete removes a session and its join rows. Only the host may do it.
func (s *SessionService) Delete(ctx context.Context, hostEmail, sessionID string) (err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("session_delete", start, err) }()

	hostEmail = model.NormalizeEmail(hostEmail)

	err = s.inTx(ctx, func(st *repository.Store) error {
		session, err := st.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return apperrors.ErrSessionNotFound
		}
		if !session.IsHostedBy(hostEmail) {
			return apperrors.ErrPermissionDenied
		}
		_, err = st.Sessions.Delete(ctx, sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.logger.Info("Session deleted",
		zap.String("session_id", sessionID),
		zap.String("host", hostEmail),
	)

	return nil
}

// UserSessions returns the sessions email hosts or joined.
func (s *SessionService) UserSessions(ctx context.Context, email string) ([]*model.SessionWithHost, error) {
	return s.store.Sessions.ListForUser(ctx, model.NormalizeEmail(email))
}

// DiscoverSessions returns the sessions hosted by someone other than email.
func (s *SessionService) DiscoverSessions(ctx context.Context, email string) ([]*model.SessionWithHost, error) {
	return s.store.Sessions.ListDiscover(ctx, model.NormalizeEmail(email))
}

func (s *SessionService) ObserveUserSessions(ctx context.Context, email string) *watch.Subscription[[]*model.SessionWithHost] {
	return observe(ctx, &s.core, sessionTables, func(ctx context.Context) ([]*model.SessionWithHost, error) {
		return s.UserSessions(ctx, email)
	})
}

func (s *SessionService) ObserveDiscoverSessions(ctx context.Context, email string) *watch.Subscription[[]*model.SessionWithHost] {
	return observe(ctx, &s.core, sessionTables, func(ctx context.Context) ([]*model.SessionWithHost, error) {
		return s.DiscoverSessions(ctx, email)
	})
}

// Members lists the emails joined to a session.
func (s *SessionService) Members(ctx context.Context, sessionID string) ([]string, error) {
	return s.store.Sessions.Members(ctx, sessionID)
}

// SweepOrphans deletes sessions nobody is joined to and returns how many.
func (s *SessionService) SweepOrphans(ctx context.Context) (_ int64, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("session_sweep_orphans", start, err) }()

	n, err := s.store.Sessions.DeleteOrphans(ctx)
	if err != nil {
		return 0, err
	}

	s.metrics.AddSwept(n)
	if n > 0 {
		s.logger.Info("Orphan sessions removed", zap.Int64("count", n))
	}

	return n, nil
}
