package model

// Session is a scheduled practice meeting. Only the host may edit or delete it.
type Session struct {
	SessionID   string `json:"session_id"`
	HostEmail   string `json:"host_email"`
	Title       string `json:"title" validate:"required"`
	Language    string `json:"language"`
	Description string `json:"description"`
	Date        string `json:"date" validate:"required"`
	Time        string `json:"time" validate:"required"`
	Duration    string `json:"duration"`
}

// SessionWithHost pairs a session with the host's visible name.
type SessionWithHost struct {
	Session
	HostName string `json:"host_name"`
}

// IsHostedBy checks ownership
func (s *Session) IsHostedBy(email string) bool {
	return s.HostEmail == NormalizeEmail(email)
}
