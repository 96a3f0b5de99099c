package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/gorilla/securecookie"
)

const consentName = "idp_consent"

// PendingAuthorization is the authorization request carried through the
// consent form. It is MAC signed so the POST cannot swap in another request.
type PendingAuthorization struct {
	ClientID            string         `json:"client_id"`
	RedirectURI         string         `json:"redirect_uri"`
	RedirectURIParam    string         `json:"redirect_uri_param,omitempty"`
	ResponseType        string         `json:"response_type"`
	Scopes              []string       `json:"scopes"`
	State               string         `json:"state,omitempty"`
	Nonce               string         `json:"nonce,omitempty"`
	CodeChallenge       string         `json:"code_challenge,omitempty"`
	CodeChallengeMethod string         `json:"code_challenge_method,omitempty"`
	Claims              map[string]any `json:"claims,omitempty"`
	Issuer              string         `json:"iss,omitempty"`

	// SessionID ties the token to the session that was shown the form.
	SessionID string `json:"sid"`
}

// NewPendingAuthorization captures areq for the session.
func NewPendingAuthorization(areq *AuthorizationRequest, sessionID string) PendingAuthorization {
	return PendingAuthorization{
		ClientID:            areq.Client.ID,
		RedirectURI:         areq.RedirectURI,
		RedirectURIParam:    areq.RedirectURIParam,
		ResponseType:        areq.ResponseType,
		Scopes:              areq.Scopes,
		State:               areq.State,
		Nonce:               areq.Nonce,
		CodeChallenge:       areq.CodeChallenge,
		CodeChallengeMethod: areq.CodeChallengeMethod,
		Claims:              areq.Claims,
		Issuer:              areq.Issuer,
		SessionID:           sessionID,
	}
}

// ConsentSigner signs and verifies pending authorizations with
// HMAC-SHA256. Tokens expire after the authorization code lifetime.
type ConsentSigner struct {
	codec *securecookie.SecureCookie
}

func NewConsentSigner(hashKey []byte, maxAge time.Duration) *ConsentSigner {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(maxAge / time.Second))
	codec.SetSerializer(securecookie.JSONEncoder{})
	return &ConsentSigner{codec: codec}
}

func (c *ConsentSigner) Sign(p PendingAuthorization) (string, error) {
	return c.codec.Encode(consentName, p)
}

// Verify returns the pending authorization, or ErrInvalidConsent when the
// token was tampered with, expired, or belongs to another session.
func (c *ConsentSigner) Verify(token, sessionID string) (*PendingAuthorization, error) {
	var p PendingAuthorization
	if err := c.codec.Decode(consentName, token, &p); err != nil {
		return nil, ErrInvalidConsent
	}
	if p.SessionID == "" || p.SessionID != sessionID {
		return nil, ErrInvalidConsent
	}
	return &p, nil
}

// Resume rebuilds the authorization request behind a verified pending
// authorization. The client is looked up again so a deleted client cannot
// complete a grant.
func (s *GrantServer) Resume(ctx context.Context, call *Call, p *PendingAuthorization) (*AuthorizationRequest, error) {
	client, err := call.Client(ctx, s.Clients, p.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, &AuthorizationError{Err: ErrInvalidClient, Description: "unknown client_id", Fatal: true}
	}
	if !s.Validator.ValidateRedirectURI(ctx, call, client, p.RedirectURI) {
		return nil, &AuthorizationError{Err: ErrInvalidRequest, Description: "mismatching redirect_uri", Fatal: true}
	}

	return &AuthorizationRequest{
		Client:              client,
		RedirectURI:         p.RedirectURI,
		RedirectURIParam:    p.RedirectURIParam,
		ResponseType:        p.ResponseType,
		Scopes:              p.Scopes,
		State:               p.State,
		Nonce:               p.Nonce,
		CodeChallenge:       p.CodeChallenge,
		CodeChallengeMethod: p.CodeChallengeMethod,
		Claims:              p.Claims,
		Issuer:              p.Issuer,
	}, nil
}

// DenyLocation is the access_denied redirect for the pending request, in
// its response mode.
func (p *PendingAuthorization) DenyLocation() string {
	return errorLocation(p.RedirectURI, p.State, ErrAccessDenied, denyDescription, domain.IsImplicit(p.ResponseType))
}
