package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// maxUserCodeAttempts bounds the retries on a user code collision.
const maxUserCodeAttempts = 5

// GrantServer sequences the validator, generator and stores for every
// endpoint of the IdP.
type GrantServer struct {
	Settings  Settings
	Validator RequestValidator
	Clients   *ClientRegistry
	Codes     *AuthorizationCodes
	Devices   *DeviceCodes
	Tokens    *TokenStore
	Generator *TokenGenerator
	Store     store.Store
	Keys      *jwtx.KeyManager
}

// TokenParams are the token endpoint parameters. Issuer is the issuer URL
// the tokens are minted under.
type TokenParams struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	DeviceCode   string
	Username     string
	Password     string
	Scopes       []string
	Issuer       string
}

// Token dispatches a token request on its grant type.
func (s *GrantServer) Token(ctx context.Context, p TokenParams) (*domain.IssuedTokens, error) {
	call := NewCall()

	switch p.GrantType {
	case domain.GrantTypeAuthorizationCode:
		return s.authorizationCodeGrant(ctx, call, p)
	case domain.GrantTypeRefreshToken:
		return s.refreshTokenGrant(ctx, call, p)
	case domain.GrantTypeClientCredentials:
		return s.clientCredentialsGrant(ctx, call, p)
	case domain.GrantTypeDeviceCode:
		return s.deviceCodeGrant(ctx, call, p)
	case domain.GrantTypePassword:
		return s.passwordGrant(ctx, call, p)
	case "":
		return nil, describe(ErrInvalidRequest, "missing grant_type")
	default:
		return nil, ErrUnsupportedGrantType
	}
}

func (s *GrantServer) authorizationCodeGrant(ctx context.Context, call *Call, p TokenParams) (*domain.IssuedTokens, error) {
	log := slogx.FromContext(ctx)

	client, err := s.Validator.AuthenticateClient(ctx, call, p.ClientID, p.ClientSecret, p.GrantType)
	if err != nil {
		return nil, err
	}
	if !s.Validator.ValidateGrantType(client, p.GrantType) {
		return nil, ErrUnauthorizedClient
	}
	if p.Code == "" {
		return nil, describe(ErrInvalidRequest, "missing code")
	}

	req := &TokenRequest{GrantType: p.GrantType, Client: client}
	ok, err := s.Validator.ValidateCode(ctx, call, client, p.Code, p.RedirectURI, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, describe(ErrInvalidGrant, "invalid or expired authorization code")
	}

	// The code is already consumed; a failed verifier cannot be retried.
	if req.CodeChallenge == "" && s.Validator.IsPKCERequired(client) {
		return nil, describe(ErrInvalidGrant, "code challenge required")
	}
	if !VerifyCodeVerifier(req.CodeChallenge, req.CodeChallengeMethod, p.CodeVerifier) {
		log.Info("PKCE verification failed", slog.String("client_id", client.ID))
		return nil, describe(ErrInvalidGrant, "code_verifier does not match")
	}

	return s.issue(ctx, req, p.Issuer, client.HasGrantType(domain.GrantTypeRefreshToken))
}

func (s *GrantServer) refreshTokenGrant(ctx context.Context, call *Call, p TokenParams) (*domain.IssuedTokens, error) {
	client, err := s.Validator.AuthenticateClient(ctx, call, p.ClientID, p.ClientSecret, p.GrantType)
	if err != nil {
		return nil, err
	}
	if !s.Validator.ValidateGrantType(client, p.GrantType) {
		return nil, ErrUnauthorizedClient
	}
	if p.RefreshToken == "" {
		return nil, describe(ErrInvalidRequest, "missing refresh_token")
	}

	old, user, err := s.Validator.ValidateRefreshToken(ctx, call, client, p.RefreshToken)
	if err != nil {
		return nil, err
	}

	// Never broader than the original grant. The new tokens carry exactly
	// the original scopes.
	if !ScopesSubset(p.Scopes, old.Scopes) {
		return nil, ErrInvalidScope
	}

	req := &TokenRequest{
		GrantType: p.GrantType,
		Client:    client,
		User:      user,
		Scopes:    old.Scopes,
		Email:     old.Email(),
		Refresh:   old,
	}

	access, accessRow, err := s.Generator.AccessToken(req, p.Issuer)
	if err != nil {
		return nil, err
	}

	refresh := p.RefreshToken
	var next *domain.Token
	if s.Settings.RotateRefreshToken {
		raw, row, err := s.Generator.RefreshToken(req)
		if err != nil {
			return nil, err
		}
		refresh, next = raw, &row
	}

	if err := s.Validator.RotateRefreshToken(ctx, old, next, accessRow); err != nil {
		return nil, err
	}

	out := &domain.IssuedTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.Settings.AccessTokenTTL,
		Scopes:       req.Scopes,
	}
	if req.HasScope(ScopeOpenID) {
		if out.IDToken, err = s.Validator.FinalizeIDToken(ctx, req, access, p.Issuer); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *GrantServer) clientCredentialsGrant(ctx context.Context, call *Call, p TokenParams) (*domain.IssuedTokens, error) {
	client, err := s.Validator.AuthenticateClient(ctx, call, p.ClientID, p.ClientSecret, p.GrantType)
	if err != nil {
		return nil, err
	}
	if client.IsPublic() || !s.Validator.ValidateGrantType(client, p.GrantType) {
		return nil, ErrUnauthorizedClient
	}

	scopes, err := s.Validator.ValidateScopes(client, p.Scopes)
	if err != nil {
		return nil, err
	}

	req := &TokenRequest{GrantType: p.GrantType, Client: client, Scopes: scopes}
	return s.issue(ctx, req, p.Issuer, false)
}

func (s *GrantServer) deviceCodeGrant(ctx context.Context, call *Call, p TokenParams) (*domain.IssuedTokens, error) {
	client, err := s.Validator.AuthenticateClient(ctx, call, p.ClientID, p.ClientSecret, p.GrantType)
	if err != nil {
		return nil, err
	}
	if p.DeviceCode == "" {
		return nil, describe(ErrInvalidRequest, "missing device_code")
	}

	outcome := s.Devices.Poll(ctx, client.ID, p.DeviceCode)
	switch outcome.Status {
	case PollPending:
		return nil, ErrAuthorizationPending
	case PollSlowDown:
		return nil, ErrSlowDown
	case PollDenied:
		return nil, describe(ErrAccessDenied, "the user denied the request")
	case PollInvalid:
		return nil, outcome.Err
	}

	grant := outcome.Grant
	user, err := s.Store.Users().GetUserByID(ctx, grant.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidGrant
	}

	req := &TokenRequest{
		GrantType: p.GrantType,
		Client:    client,
		User:      &user,
		Scopes:    grant.Scopes,
		AuthTime:  grant.AuthTime,
	}
	return s.issue(ctx, req, p.Issuer, client.HasGrantType(domain.GrantTypeRefreshToken))
}

// passwordGrant exists to refuse the password grant. A client registered
// for it gets the generic credentials error.
func (s *GrantServer) passwordGrant(ctx context.Context, call *Call, p TokenParams) (*domain.IssuedTokens, error) {
	client, err := s.Validator.AuthenticateClient(ctx, call, p.ClientID, p.ClientSecret, p.GrantType)
	if err != nil {
		return nil, err
	}
	if !client.HasGrantType(domain.GrantTypePassword) {
		return nil, ErrUnsupportedGrantType
	}
	if !s.Validator.ValidateUserPassword(ctx, client, p.Username, p.Password) {
		return nil, describe(ErrInvalidGrant, "Invalid credentials given")
	}
	return nil, ErrUnsupportedGrantType
}

// issue mints and stores the tokens for a validated request. The ID token
// is only added for a user grant with the openid scope, and never for the
// bare "token" response type.
func (s *GrantServer) issue(ctx context.Context, req *TokenRequest, issuer string, withRefresh bool) (*domain.IssuedTokens, error) {
	access, accessRow, err := s.Generator.AccessToken(req, issuer)
	if err != nil {
		return nil, err
	}

	out := &domain.IssuedTokens{
		AccessToken: access,
		ExpiresIn:   s.Settings.AccessTokenTTL,
		Scopes:      req.Scopes,
	}

	var refreshRow *domain.Token
	if withRefresh && req.User != nil {
		raw, row, err := s.Generator.RefreshToken(req)
		if err != nil {
			return nil, err
		}
		out.RefreshToken, refreshRow = raw, &row
	}

	if req.User != nil && req.HasScope(ScopeOpenID) && req.ResponseType != domain.ResponseTypeToken {
		if out.IDToken, err = s.Validator.FinalizeIDToken(ctx, req, access, issuer); err != nil {
			return nil, err
		}
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.Tokens.StoreTx(ctx, tx, accessRow); err != nil {
			return err
		}
		if refreshRow != nil {
			return s.Tokens.StoreTx(ctx, tx, *refreshRow)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("tokens issued",
		slog.String("grant_type", req.GrantType),
		slog.String("client_id", req.Client.ID),
		slog.Bool("refresh", out.RefreshToken != ""),
		slog.Bool("id_token", out.IDToken != ""),
	)
	return out, nil
}

// DeviceAuthorize starts an RFC 8628 flow for a public client registered
// for the device grant.
func (s *GrantServer) DeviceAuthorize(ctx context.Context, clientID string, scopes []string, verificationURI string) (*domain.DeviceAuthorization, error) {
	client, err := s.Clients.Lookup(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrInvalidClient
	}
	if !client.IsPublic() {
		return nil, describe(ErrInvalidClient, "device authorization requires a public client")
	}
	if !s.Validator.ValidateGrantType(client, domain.GrantTypeDeviceCode) {
		return nil, ErrUnauthorizedClient
	}

	granted, err := s.Validator.ValidateScopes(client, scopes)
	if err != nil {
		return nil, err
	}

	deviceCode, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	var userCode string
	for range maxUserCodeAttempts {
		candidate, err := cryptox.GenerateUserCode()
		if err != nil {
			return nil, err
		}
		taken, err := s.Devices.UserCodeTaken(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !taken {
			userCode = candidate
			break
		}
	}
	if userCode == "" {
		return nil, errors.New("could not allocate a unique user code")
	}

	display := cryptox.FormatUserCode(userCode)
	payload := domain.DeviceAuthorization{
		DeviceCode:              deviceCode,
		UserCode:                display,
		VerificationURI:         verificationURI,
		VerificationURIComplete: appendQuery(verificationURI, url.Values{"code": {display}}),
		ExpiresIn:               int(s.Settings.DeviceCodeTTL / time.Second),
		Interval:                int(s.Settings.DeviceCodeInterval / time.Second),
	}

	if err := s.Devices.Create(ctx, client.ID, granted, payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Revoke deletes a token per RFC 7009. Unknown tokens succeed.
func (s *GrantServer) Revoke(ctx context.Context, token, hint string) error {
	return s.Tokens.RevokeByRaw(ctx, token, hint)
}

// UserInfo returns the claims the bearer token's scopes release. The email
// bound to the grant wins over the user's current primary address.
func (s *GrantServer) UserInfo(ctx context.Context, bearer BearerRequest) (*authsdk.UserInfoResponse, error) {
	tok, user, err := s.Validator.ValidateBearerToken(ctx, bearer, []string{ScopeOpenID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, describe(ErrInvalidToken, "the access token is not bound to a user")
	}

	resp := &authsdk.UserInfoResponse{Sub: user.ID}
	if slices.Contains(tok.Scopes, ScopeEmail) {
		email := tok.Email()
		if email == "" {
			email = user.Email
		}
		if email != "" {
			verified := user.EmailVerified && email == user.Email
			resp.Email = email
			resp.EmailVerified = &verified
		}
	}
	if slices.Contains(tok.Scopes, ScopeProfile) {
		resp.Name = user.Name
		resp.PreferredUsername = user.Username
	}
	return resp, nil
}

// LogoutParams are the RP-initiated logout parameters.
type LogoutParams struct {
	IDTokenHint           string
	LogoutHint            string
	ClientID              string
	PostLogoutRedirectURI string
	State                 string
	UILocales             string
}

// LogoutResult is where to send the user once logged out. Client is nil
// when no trustworthy client could be identified.
type LogoutResult struct {
	Client      *domain.Client
	RedirectURI string
	Revoked     int64
}

// ResolveLogout works out the client and redirect of a logout request
// without acting on it.
func (s *GrantServer) ResolveLogout(ctx context.Context, p LogoutParams) (*LogoutResult, error) {
	log := slogx.FromContext(ctx)
	clientID := p.ClientID

	if p.IDTokenHint != "" {
		claims, err := s.Keys.HintVerifier.Verify(p.IDTokenHint)
		switch {
		case err != nil:
			log.Info("ignoring invalid id_token_hint", slog.Any("error", err))
		case clientID != "" && !slices.Contains(claims.Audience, clientID):
			log.Info("id_token_hint audience does not match client_id", slog.String("client_id", clientID))
			clientID = ""
		case clientID == "" && len(claims.Audience) == 1:
			clientID = claims.Audience[0]
		}
	}

	res := &LogoutResult{RedirectURI: "/"}
	if clientID == "" {
		return res, nil
	}

	client, err := s.Clients.Lookup(ctx, clientID)
	if err != nil {
		return nil, err
	}
	res.Client = client

	if client != nil && p.PostLogoutRedirectURI != "" {
		if MatchesRedirectURI(client, p.PostLogoutRedirectURI) {
			res.RedirectURI = p.PostLogoutRedirectURI
			if p.State != "" {
				res.RedirectURI = appendQuery(res.RedirectURI, url.Values{"state": {p.State}})
			}
		} else {
			log.Info("post_logout_redirect_uri not registered", slog.String("client_id", client.ID))
		}
	}
	return res, nil
}

// Logout resolves the request and revokes the client's tokens for the
// session user. Ending the session is up to the caller.
func (s *GrantServer) Logout(ctx context.Context, session *domain.Session, p LogoutParams) (*LogoutResult, error) {
	res, err := s.ResolveLogout(ctx, p)
	if err != nil {
		return nil, err
	}
	if res.Client != nil && session.Authenticated() {
		n, err := s.Tokens.RevokeForClientUser(ctx, res.Client.ID, session.UserID)
		if err != nil {
			return nil, err
		}
		res.Revoked = n
	}
	return res, nil
}
