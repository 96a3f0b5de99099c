package service

import (
	"slices"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
)

// OIDC scopes that release claims.
const (
	ScopeOpenID  = "openid"
	ScopeEmail   = "email"
	ScopeProfile = "profile"
)

// GrantTypeImplicit labels tokens minted by an implicit authorization
// response. Clients are never registered for it; their response types decide.
const GrantTypeImplicit = "implicit"

// ScopeAdmin grants access to the client management API.
const ScopeAdmin = "idp:admin"

// TokenRequest is the in-flight state of one token endpoint call. The
// validator fills it in as checks pass and the generator reads it.
type TokenRequest struct {
	GrantType string
	Client    *domain.Client
	User      *domain.User
	Scopes    []string

	// ResponseType is set for implicit responses.
	ResponseType string

	// RedirectURI is the value bound to the code at issuance.
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string

	Claims    map[string]any
	Email     string
	Nonce     string
	AuthTime  time.Time
	AMR       []string
	SessionID string

	// Refresh is the token being exchanged by the refresh_token grant.
	Refresh *domain.Token
}

func (r *TokenRequest) HasScope(scope string) bool {
	return slices.Contains(r.Scopes, scope)
}

// Subject is the user id, or the client id for client_credentials.
func (r *TokenRequest) Subject() string {
	if r.User != nil {
		return r.User.ID
	}
	if r.Client != nil {
		return r.Client.ID
	}
	return ""
}

// BoundEmail is the address released for the email scope.
func (r *TokenRequest) BoundEmail() string {
	if r.Email != "" {
		return r.Email
	}
	if r.User != nil {
		return r.User.Email
	}
	return ""
}
