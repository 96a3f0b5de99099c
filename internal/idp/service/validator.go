package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// BearerRequest is what a resource request presented as credentials.
type BearerRequest struct {
	// Token from the Authorization header.
	Token string

	// InQuery is set when the URL carried an access_token parameter.
	InQuery bool
}

// RequestValidator makes every protocol decision of the grant engine. The
// GrantServer calls it in the order the protocol mandates.
type RequestValidator interface {
	AuthenticateClient(ctx context.Context, call *Call, clientID, secret, grantType string) (*domain.Client, error)
	IsPKCERequired(client *domain.Client) bool
	ValidateRedirectURI(ctx context.Context, call *Call, client *domain.Client, uri string) bool
	ValidateScopes(client *domain.Client, requested []string) ([]string, error)
	ValidateGrantType(client *domain.Client, grantType string) bool
	ValidateCode(ctx context.Context, call *Call, client *domain.Client, code, redirectURI string, req *TokenRequest) (bool, error)
	ValidateBearerToken(ctx context.Context, r BearerRequest, required []string) (*domain.Token, *domain.User, error)
	ValidateRefreshToken(ctx context.Context, call *Call, client *domain.Client, raw string) (*domain.Token, *domain.User, error)
	RotateRefreshToken(ctx context.Context, old *domain.Token, next *domain.Token, access domain.Token) error
	ValidateSilentAuthorization(ctx context.Context, call *Call, session *domain.Session, client *domain.Client, idTokenHint string) (*domain.User, error)
	ValidateOrigin(ctx context.Context, call *Call, clientID, origin string) bool
	FinalizeIDToken(ctx context.Context, req *TokenRequest, accessToken, issuer string) (string, error)
	ValidateUserPassword(ctx context.Context, client *domain.Client, username, password string) bool
}

// Validator is the RequestValidator backed by the registry, token store and
// code cache.
type Validator struct {
	Settings Settings
	Clients  *ClientRegistry
	Tokens   *TokenStore
	Codes    *AuthorizationCodes
	Store    store.Store
	Keys     *jwtx.KeyManager
	Now      func() time.Time
}

var _ RequestValidator = (*Validator)(nil)

// AuthenticateClient resolves the client and checks its credentials.
// Confidential clients need their secret, except when polling a device code.
// Unknown clients and bad secrets look the same to the caller.
func (v *Validator) AuthenticateClient(ctx context.Context, call *Call, clientID, secret, grantType string) (*domain.Client, error) {
	log := slogx.FromContext(ctx)

	client, err := call.Client(ctx, v.Clients, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Info("unknown client", slog.String("client_id", clientID))
		return nil, ErrInvalidClient
	}

	if client.IsPublic() || grantType == domain.GrantTypeDeviceCode {
		return client, nil
	}

	if !v.Clients.ValidateSecret(client, secret) {
		log.Info("client authentication failed", slog.String("client_id", clientID))
		return nil, ErrInvalidClient
	}
	return client, nil
}

func (v *Validator) IsPKCERequired(client *domain.Client) bool {
	return client.IsPublic()
}

// ValidateRedirectURI fails closed: anything not registered is rejected.
func (v *Validator) ValidateRedirectURI(ctx context.Context, _ *Call, client *domain.Client, uri string) bool {
	if MatchesRedirectURI(client, uri) {
		return true
	}
	slogx.FromContext(ctx).Info("redirect_uri mismatch", slog.String("client_id", client.ID))
	return false
}

// ValidateScopes returns the scopes to grant: the request when it is a
// subset of the client's scopes, or the default scopes when it is empty.
func (v *Validator) ValidateScopes(client *domain.Client, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return client.DefaultScopes, nil
	}
	if !ScopesSubset(requested, client.Scopes) {
		return nil, ErrInvalidScope
	}
	return dedupe(requested), nil
}

func (v *Validator) ValidateGrantType(client *domain.Client, grantType string) bool {
	if grantType == domain.GrantTypePassword {
		return false
	}
	return client.HasGrantType(grantType)
}

// ValidateCode redeems code for client and checks the redirect_uri matches
// the one presented when the code was issued. The code is consumed even
// when the binding check fails.
func (v *Validator) ValidateCode(ctx context.Context, call *Call, client *domain.Client, code, redirectURI string, req *TokenRequest) (bool, error) {
	ok, err := v.Codes.Validate(ctx, call, client.ID, code, req)
	if err != nil || !ok {
		return false, err
	}
	if req.RedirectURI != redirectURI {
		slogx.FromContext(ctx).Info("redirect_uri differs from authorization request", slog.String("client_id", client.ID))
		return false, nil
	}
	req.Client = client
	return true, nil
}

// ValidateBearerToken authenticates a resource request. Tokens in the URL
// are refused outright.
func (v *Validator) ValidateBearerToken(ctx context.Context, r BearerRequest, required []string) (*domain.Token, *domain.User, error) {
	log := slogx.FromContext(ctx)

	if r.InQuery {
		log.Warn("access token sent in URL query")
		return nil, nil, describe(ErrInvalidToken, "access tokens must be sent in the Authorization header")
	}
	if r.Token == "" {
		return nil, nil, describe(ErrInvalidToken, "missing access token")
	}

	tok, err := v.Tokens.Lookup(ctx, domain.TokenTypeAccess, r.Token)
	if err != nil {
		return nil, nil, err
	}
	if tok == nil {
		return nil, nil, describe(ErrInvalidToken, "the access token is invalid or has expired")
	}

	var user *domain.User
	if tok.UserID != "" {
		u, err := v.Store.Users().GetUserByID(ctx, tok.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, describe(ErrInvalidToken, "the access token is invalid or has expired")
		}
		if err != nil {
			return nil, nil, err
		}
		if !u.Active {
			log.Info("bearer token of inactive user", slog.String("user_id", u.ID))
			return nil, nil, describe(ErrInvalidToken, "the access token is invalid or has expired")
		}
		user = &u
	}

	if !ScopesSubset(required, tok.Scopes) {
		return nil, nil, ErrInsufficientScope
	}
	return tok, user, nil
}

// ValidateRefreshToken resolves a refresh token issued to client.
func (v *Validator) ValidateRefreshToken(ctx context.Context, _ *Call, client *domain.Client, raw string) (*domain.Token, *domain.User, error) {
	tok, err := v.Tokens.Lookup(ctx, domain.TokenTypeRefresh, raw)
	if err != nil {
		return nil, nil, err
	}
	if tok == nil || tok.ClientID != client.ID {
		return nil, nil, ErrInvalidGrant
	}

	u, err := v.Store.Users().GetUserByID(ctx, tok.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, nil, err
	}
	if !u.Active {
		return nil, nil, ErrInvalidGrant
	}
	return tok, &u, nil
}

// RotateRefreshToken stores the new access token and, unless next is nil,
// replaces old with next in the same transaction. A nil next keeps the old
// refresh token in place. Losing a race for old yields ErrInvalidGrant.
func (v *Validator) RotateRefreshToken(ctx context.Context, old *domain.Token, next *domain.Token, access domain.Token) error {
	return v.Store.WithTx(ctx, func(tx store.Tx) error {
		if next != nil {
			n, err := tx.Tokens().DeleteTokensByHash(ctx, old.Hash, domain.TokenTypeRefresh)
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrInvalidGrant
			}
			if err := v.Tokens.StoreTx(ctx, tx, *next); err != nil {
				return err
			}
		}
		return v.Tokens.StoreTx(ctx, tx, access)
	})
}

// ValidateSilentAuthorization answers prompt=none: the session user becomes
// the subject, and an id_token_hint must name that same user.
func (v *Validator) ValidateSilentAuthorization(ctx context.Context, _ *Call, session *domain.Session, client *domain.Client, idTokenHint string) (*domain.User, error) {
	if !session.Authenticated() {
		return nil, ErrLoginRequired
	}

	u, err := v.Store.Users().GetUserByID(ctx, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrLoginRequired
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrLoginRequired
	}

	if idTokenHint != "" {
		claims, err := v.Keys.HintVerifier.Verify(idTokenHint)
		if err != nil {
			return nil, describe(ErrLoginRequired, "invalid id_token_hint")
		}
		if claims.Subject != u.ID {
			slogx.FromContext(ctx).Info("id_token_hint subject differs from session", slog.String("client_id", client.ID))
			return nil, ErrSessionMismatch
		}
	}
	return &u, nil
}

func (v *Validator) ValidateOrigin(ctx context.Context, call *Call, clientID, origin string) bool {
	client, err := call.Client(ctx, v.Clients, clientID)
	if err != nil || client == nil {
		return false
	}
	return MatchesOrigin(client, origin)
}

// FinalizeIDToken signs the ID token for req. Email and profile claims are
// only released when their scope was granted.
func (v *Validator) FinalizeIDToken(_ context.Context, req *TokenRequest, accessToken, issuer string) (string, error) {
	if req.User == nil || req.Client == nil {
		return "", errors.New("id token needs a user and a client")
	}

	claims := jwtx.NewIDClaims(req.User.ID, req.Client.ID, req.Nonce, req.AuthTime, v.Settings.IDTokenTTL, issuer, clock(v.Now))
	claims.ID = jwtx.NewJTI()
	claims.SID = req.SessionID
	claims.AMR = req.AMR
	if accessToken != "" {
		claims.AtHash = jwtx.AccessTokenHash(accessToken)
	}

	if req.HasScope(ScopeEmail) {
		if email := req.BoundEmail(); email != "" {
			claims.Email = email
			verified := req.User.EmailVerified && email == req.User.Email
			claims.EmailVerified = &verified
		}
	}
	if req.HasScope(ScopeProfile) {
		claims.Name = req.User.Name
		claims.PreferredUsername = req.User.Username
	}

	return v.Keys.GetSigner().Sign(claims)
}

// ValidateUserPassword backs the resource owner password grant, which is
// disabled.
func (v *Validator) ValidateUserPassword(context.Context, *domain.Client, string, string) bool {
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
