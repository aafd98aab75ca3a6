package repository

import (
	"context"
	"fmt"

	"github.com/languagebuddy/buddy/internal/model"
	"github.com/languagebuddy/buddy/internal/repository/base"
)

// SessionRepository covers sessions and the user_session_join table.
type SessionRepository struct {
	*base.Repository
}

func NewSessionRepository(r *base.Repository) *SessionRepository {
	return &SessionRepository{Repository: r}
}

const sessionColumns = `
	s.session_id, s.host_email, s.title, COALESCE(s.language, ''), COALESCE(s.description, ''),
	s.session_date, s.session_time, s.duration
`

// hostNameExpr picks the host's display name, then name, then email.
const hostNameExpr = `COALESCE(NULLIF(TRIM(a.display_name), ''), NULLIF(a.name, ''), s.host_email)`

func scanSession(row scanner) (*model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.SessionID,
		&s.HostEmail,
		&s.Title,
		&s.Language,
		&s.Description,
		&s.Date,
		&s.Time,
		&s.Duration,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSessionWithHost(row scanner) (*model.SessionWithHost, error) {
	var s model.SessionWithHost
	err := row.Scan(
		&s.SessionID,
		&s.HostEmail,
		&s.Title,
		&s.Language,
		&s.Description,
		&s.Date,
		&s.Time,
		&s.Duration,
		&s.HostName,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert inserts the session or replaces its fields.
func (r *SessionRepository) Upsert(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (session_id, host_email, title, language, description, session_date, session_time, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			host_email = excluded.host_email,
			title = excluded.title,
			language = excluded.language,
			description = excluded.description,
			session_date = excluded.session_date,
			session_time = excluded.session_time,
			duration = excluded.duration
	`

	_, err := r.ExecAffected(
		ctx, TableSessions, query,
		s.SessionID,
		s.HostEmail,
		s.Title,
		s.Language,
		s.Description,
		s.Date,
		s.Time,
		s.Duration,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// GetByID returns nil when the session does not exist.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions s WHERE s.session_id = ?`

	s, err := scanSession(r.QueryRow(ctx, query, sessionID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	return s, nil
}

// ListForUser returns the sessions email hosts or joined.
func (r *SessionRepository) ListForUser(ctx context.Context, email string) ([]*model.SessionWithHost, error) {
	query := `
		SELECT ` + sessionColumns + `, ` + hostNameExpr + `
		FROM sessions s
		JOIN user_session_join j ON j.session_id = s.session_id
		LEFT JOIN accounts a ON a.email = s.host_email
		WHERE j.email = ?
		ORDER BY s.session_date, s.session_time, s.session_id
	`

	rows, err := r.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}

	sessions, err := collect(rows, scanSessionWithHost)
	if err != nil {
		return nil, fmt.Errorf("scan user sessions: %w", err)
	}

	return sessions, nil
}

// ListDiscover returns the sessions hosted by anyone but email.
func (r *SessionRepository) ListDiscover(ctx context.Context, email string) ([]*model.SessionWithHost, error) {
	query := `
		SELECT ` + sessionColumns + `, ` + hostNameExpr + `
		FROM sessions s
		LEFT JOIN accounts a ON a.email = s.host_email
		WHERE s.host_email <> ?
		ORDER BY s.session_date, s.session_time, s.session_id
	`

	rows, err := r.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("list discover sessions: %w", err)
	}

	sessions, err := collect(rows, scanSessionWithHost)
	if err != nil {
		return nil, fmt.Errorf("scan discover sessions: %w", err)
	}

	return sessions, nil
}

// Delete removes the session and its join rows.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) (bool, error) {
	if _, err := r.ExecAffected(ctx, TableSessionJoin, `DELETE FROM user_session_join WHERE session_id = ?`, sessionID); err != nil {
		return false, fmt.Errorf("delete session members: %w", err)
	}

	n, err := r.ExecAffected(ctx, TableSessions, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	return n > 0, nil
}

// DeleteOrphans removes sessions nobody is joined to.
func (r *SessionRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE NOT EXISTS (
			SELECT 1 FROM user_session_join j WHERE j.session_id = sessions.session_id
		)
	`

	n, err := r.ExecAffected(ctx, TableSessions, query)
	if err != nil {
		return 0, fmt.Errorf("delete orphan sessions: %w", err)
	}

	return n, nil
}

// Join adds a join row; an existing one is left untouched.
func (r *SessionRepository) Join(ctx context.Context, email, sessionID string) error {
	query := `
		INSERT INTO user_session_join (email, session_id)
		VALUES (?, ?)
		ON CONFLICT (email, session_id) DO NOTHING
	`

	if _, err := r.ExecAffected(ctx, TableSessionJoin, query, email, sessionID); err != nil {
		return fmt.Errorf("join session: %w", err)
	}
	return nil
}

// Leave deletes the join row only.
func (r *SessionRepository) Leave(ctx context.Context, email, sessionID string) (bool, error) {
	query := `DELETE FROM user_session_join WHERE email = ? AND session_id = ?`

	n, err := r.ExecAffected(ctx, TableSessionJoin, query, email, sessionID)
	if err != nil {
		return false, fmt.Errorf("leave session: %w", err)
	}

	return n > 0, nil
}

// Members lists the emails joined to a session.
func (r *SessionRepository) Members(ctx context.Context, sessionID string) ([]string, error) {
	query := `SELECT email FROM user_session_join WHERE session_id = ? ORDER BY email`

	rows, err := r.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session members: %w", err)
	}

	members, err := collect(rows, func(row scanner) (string, error) {
		var email string
		err := row.Scan(&email)
		return email, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan session members: %w", err)
	}

	return members, nil
}
