package domain

import "time"

type TokenType string

const (
	TokenTypeAccess        TokenType = "access"
	TokenTypeRefresh       TokenType = "refresh"
	TokenTypeInitialAccess TokenType = "initial_access"
)

// Token is a stored, hashed token row. The raw value is only ever held by the
// caller it was issued to.
type Token struct {
	ID        string
	Type      TokenType
	Hash      string // SHA-256 hex of the raw value
	ClientID  string // empty when not bound to a client
	UserID    string // empty for client_credentials
	Scopes    []string
	ExpiresAt *time.Time // nil never expires
	CreatedAt time.Time
	Data      map[string]any
}

// Expired reports whether the token is past its expiry at now.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Email returns the email address bound to the grant, if any.
func (t *Token) Email() string {
	if t.Data == nil {
		return ""
	}
	email, _ := t.Data["email"].(string)
	return email
}

// IssuedTokens is what the token endpoint hands back to the client.
type IssuedTokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresIn    time.Duration
	Scopes       []string
}
