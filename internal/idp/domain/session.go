package domain

import "time"

// Session is the signed-in principal carried by the login cookie.
type Session struct {
	ID       string
	UserID   string
	AuthTime time.Time
	AMR      []string
	CSRF     string
}

func (s *Session) Authenticated() bool { return s != nil && s.UserID != "" }
