package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
)

// OIDC prompt values.
const (
	PromptNone    = "none"
	PromptLogin   = "login"
	PromptConsent = "consent"
)

// AuthorizationParams are the raw authorization endpoint parameters.
type AuthorizationParams struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	Prompt              string
	IDTokenHint         string
	Claims              string

	// Issuer is the issuer URL the request is served under. Implicit
	// responses mint their tokens with it.
	Issuer string
}

// AuthorizationRequest is a validated authorization request.
type AuthorizationRequest struct {
	Client *domain.Client

	// RedirectURI is where the response is sent. RedirectURIParam is the
	// value the client presented, empty when it relied on its single
	// registered URI. The token request must present the same value.
	RedirectURI      string
	RedirectURIParam string

	ResponseType        string
	Scopes              []string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	Prompts             []string
	IDTokenHint         string
	Claims              map[string]any
	Issuer              string
}

// Implicit reports whether the response carries tokens in the fragment
// instead of a code in the query.
func (a *AuthorizationRequest) Implicit() bool {
	return domain.IsImplicit(a.ResponseType)
}

// ErrorLocation builds the error redirect in the response mode of a.
func (a *AuthorizationRequest) ErrorLocation(err error, desc string) string {
	return errorLocation(a.RedirectURI, a.State, err, desc, a.Implicit())
}

func (a *AuthorizationRequest) HasPrompt(p string) bool {
	return slices.Contains(a.Prompts, p)
}

// AuthorizationError is a failed authorization request. Fatal errors must
// be shown to the user; the rest are sent back to the redirect URI.
type AuthorizationError struct {
	Err         error
	Description string
	Fatal       bool
	RedirectURI string
	State       string
	Fragment    bool
}

func (e *AuthorizationError) Error() string {
	return ErrorCode(e.Err) + ": " + e.Description
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// Location is the redirect carrying the error back to the client.
func (e *AuthorizationError) Location() string {
	return errorLocation(e.RedirectURI, e.State, e.Err, e.Description, e.Fragment)
}

// ValidateAuthorizationRequest checks an authorization request. Errors about
// the client or the redirect URI are fatal; later errors can be redirected.
func (s *GrantServer) ValidateAuthorizationRequest(ctx context.Context, call *Call, p AuthorizationParams) (*AuthorizationRequest, error) {
	client, err := call.Client(ctx, s.Clients, p.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, &AuthorizationError{Err: ErrInvalidClient, Description: "unknown client_id", Fatal: true}
	}

	redirect := p.RedirectURI
	switch {
	case redirect == "":
		if len(client.RedirectURIs) != 1 || strings.Contains(client.RedirectURIs[0], "*") {
			return nil, &AuthorizationError{Err: ErrInvalidRequest, Description: "missing redirect_uri", Fatal: true}
		}
		redirect = client.RedirectURIs[0]
	case !s.Validator.ValidateRedirectURI(ctx, call, client, redirect):
		return nil, &AuthorizationError{Err: ErrInvalidRequest, Description: "mismatching redirect_uri", Fatal: true}
	}

	responseType := domain.NormalizeResponseType(p.ResponseType)
	implicit := domain.IsImplicit(responseType)
	fail := func(err error, desc string) error {
		return &AuthorizationError{Err: err, Description: desc, RedirectURI: redirect, State: p.State, Fragment: implicit}
	}

	if responseType == "" {
		return nil, fail(ErrInvalidRequest, "missing response_type")
	}
	if !domain.SupportedResponseType(responseType) || !client.HasResponseType(responseType) {
		return nil, fail(ErrUnsupportedResponseType, "response_type not supported for this client")
	}
	if !implicit && !s.Validator.ValidateGrantType(client, domain.GrantTypeAuthorizationCode) {
		return nil, fail(ErrUnauthorizedClient, "client may not use the authorization code grant")
	}

	scopes, err := s.Validator.ValidateScopes(client, strings.Fields(p.Scope))
	if err != nil {
		return nil, fail(ErrInvalidScope, "requested scope is not allowed for this client")
	}

	var challenge, method string
	if implicit {
		// OpenID Connect Core 3.2.2.1: an ID token from the authorization
		// endpoint needs openid and a nonce.
		if responseType == domain.ResponseTypeIDTokenToken {
			if !slices.Contains(scopes, ScopeOpenID) {
				return nil, fail(ErrInvalidScope, "id_token requires the openid scope")
			}
			if p.Nonce == "" {
				return nil, fail(ErrInvalidRequest, "nonce is required for id_token responses")
			}
		}
	} else {
		challenge, method, err = normalizePKCE(p.CodeChallenge, p.CodeChallengeMethod, s.Validator.IsPKCERequired(client))
		if err != nil {
			return nil, fail(ErrInvalidRequest, Description(err))
		}
	}

	prompts := strings.Fields(p.Prompt)
	if slices.Contains(prompts, PromptNone) && len(prompts) > 1 {
		return nil, fail(ErrInvalidRequest, "prompt none cannot be combined with other values")
	}

	var claims map[string]any
	if p.Claims != "" {
		if err := json.Unmarshal([]byte(p.Claims), &claims); err != nil {
			return nil, fail(ErrInvalidRequest, "malformed claims parameter")
		}
	}

	return &AuthorizationRequest{
		Client:              client,
		RedirectURI:         redirect,
		RedirectURIParam:    p.RedirectURI,
		ResponseType:        responseType,
		Scopes:              scopes,
		State:               p.State,
		Nonce:               p.Nonce,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		Prompts:             prompts,
		IDTokenHint:         p.IDTokenHint,
		Claims:              claims,
		Issuer:              p.Issuer,
	}, nil
}

// CreateAuthorization issues a code, or the tokens of an implicit response,
// for the approved scopes, which must be a subset of the requested ones, and
// returns the redirect carrying them.
func (s *GrantServer) CreateAuthorization(
	ctx context.Context,
	areq *AuthorizationRequest,
	user *domain.User,
	session *domain.Session,
	scopes []string,
	email string,
) (string, error) {
	if !ScopesSubset(scopes, areq.Scopes) {
		return "", ErrInvalidScope
	}
	if email != "" && email != user.Email {
		return "", describe(ErrInvalidRequest, "unknown email address")
	}

	if areq.Implicit() {
		return s.implicitResponse(ctx, areq, user, session, scopes, email)
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	grant := domain.AuthorizationCode{
		RedirectURI:         areq.RedirectURIParam,
		UserID:              user.ID,
		Scopes:              scopes,
		Claims:              areq.Claims,
		CodeChallenge:       areq.CodeChallenge,
		CodeChallengeMethod: areq.CodeChallengeMethod,
		Nonce:               areq.Nonce,
		Email:               email,
	}
	if session != nil {
		grant.AuthTime = session.AuthTime
		grant.AMR = session.AMR
		grant.SessionID = session.ID
	}

	if err := s.Codes.Create(ctx, areq.Client, code, grant); err != nil {
		return "", err
	}

	params := url.Values{"code": {code}}
	if areq.State != "" {
		params.Set("state", areq.State)
	}
	return appendQuery(areq.RedirectURI, params), nil
}

// implicitResponse mints an access token, plus an ID token for
// "id_token token", and returns them in the redirect fragment. There is no
// refresh token.
func (s *GrantServer) implicitResponse(
	ctx context.Context,
	areq *AuthorizationRequest,
	user *domain.User,
	session *domain.Session,
	scopes []string,
	email string,
) (string, error) {
	req := &TokenRequest{
		GrantType:    GrantTypeImplicit,
		ResponseType: areq.ResponseType,
		Client:       areq.Client,
		User:         user,
		Scopes:       scopes,
		Claims:       areq.Claims,
		Email:        email,
		Nonce:        areq.Nonce,
	}
	if session != nil {
		req.AuthTime = session.AuthTime
		req.AMR = session.AMR
		req.SessionID = session.ID
	}

	out, err := s.issue(ctx, req, areq.Issuer, false)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"access_token": {out.AccessToken},
		"token_type":   {"Bearer"},
		"expires_in":   {strconv.Itoa(int(out.ExpiresIn / time.Second))},
		"scope":        {strings.Join(out.Scopes, " ")},
	}
	if out.IDToken != "" {
		params.Set("id_token", out.IDToken)
	}
	if areq.State != "" {
		params.Set("state", areq.State)
	}
	return withFragment(areq.RedirectURI, params), nil
}

// SilentAuthorization answers prompt=none without user interaction: a code
// for every requested scope, or a login_required redirect.
func (s *GrantServer) SilentAuthorization(ctx context.Context, call *Call, areq *AuthorizationRequest, session *domain.Session) (string, error) {
	user, err := s.Validator.ValidateSilentAuthorization(ctx, call, session, areq.Client, areq.IDTokenHint)
	if errors.Is(err, ErrLoginRequired) {
		return areq.ErrorLocation(ErrLoginRequired, Description(err)), nil
	}
	if err != nil {
		return "", err
	}
	return s.CreateAuthorization(ctx, areq, user, session, areq.Scopes, "")
}

const denyDescription = "the user denied the request"

// DenyLocation is the redirect sent when the user refuses consent.
func DenyLocation(redirectURI, state string) string {
	return ErrorLocation(redirectURI, state, ErrAccessDenied, denyDescription)
}

// ErrorLocation builds an error redirect per RFC 6749 section 4.1.2.1.
func ErrorLocation(redirectURI, state string, err error, desc string) string {
	return errorLocation(redirectURI, state, err, desc, false)
}

// errorLocation puts the error in the fragment for implicit responses, per
// RFC 6749 section 4.2.2.1.
func errorLocation(redirectURI, state string, err error, desc string, fragment bool) string {
	params := url.Values{"error": {ErrorCode(err)}}
	if desc != "" {
		params.Set("error_description", desc)
	}
	if state != "" {
		params.Set("state", state)
	}
	if fragment {
		return withFragment(redirectURI, params)
	}
	return appendQuery(redirectURI, params)
}

// ErrorCode returns the OAuth2 error code for err.
func ErrorCode(err error) string {
	for _, e := range []error{
		ErrInvalidRequest, ErrInvalidClient, ErrInvalidGrant, ErrInvalidScope,
		ErrUnauthorizedClient, ErrUnsupportedGrantType, ErrUnsupportedResponseType,
		ErrAccessDenied, ErrLoginRequired, ErrInvalidToken, ErrInsufficientScope,
		ErrAuthorizationPending, ErrSlowDown, ErrExpiredToken,
	} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "server_error"
}

func appendQuery(base string, params url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func withFragment(base string, params url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String() + "#" + params.Encode()
}
