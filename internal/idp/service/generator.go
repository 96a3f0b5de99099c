package service

import (
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/idx"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
)

// TokenGenerator mints access and refresh tokens. It returns the raw value
// for the client together with the hashed row to persist.
type TokenGenerator struct {
	Settings Settings
	Keys     *jwtx.KeyManager
	Now      func() time.Time
}

// AccessToken returns an opaque random token or a signed JWT depending on
// the configured format. Both are stored by hash so they can be revoked.
func (g *TokenGenerator) AccessToken(req *TokenRequest, issuer string) (string, domain.Token, error) {
	now := clock(g.Now)
	ttl := g.Settings.AccessTokenTTL

	var raw string
	switch g.Settings.AccessTokenFormat {
	case AccessTokenJWT:
		clientID := ""
		if req.Client != nil {
			clientID = req.Client.ID
		}
		claims := jwtx.NewAccessClaims(req.Subject(), clientID, req.Scopes, ttl, issuer, []string{clientID}, now)
		signed, err := g.Keys.GetSigner().Sign(claims)
		if err != nil {
			return "", domain.Token{}, err
		}
		raw = signed
	default:
		opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return "", domain.Token{}, err
		}
		raw = opaque
	}

	exp := now.Add(ttl)
	return raw, g.row(req, domain.TokenTypeAccess, raw, &exp, now), nil
}

// RefreshToken returns a new opaque refresh token. A zero RefreshTokenTTL
// makes it non-expiring.
func (g *TokenGenerator) RefreshToken(req *TokenRequest) (string, domain.Token, error) {
	now := clock(g.Now)

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.Token{}, err
	}

	var exp *time.Time
	if g.Settings.RefreshTokenTTL > 0 {
		t := now.Add(g.Settings.RefreshTokenTTL)
		exp = &t
	}
	return raw, g.row(req, domain.TokenTypeRefresh, raw, exp, now), nil
}

func (g *TokenGenerator) row(req *TokenRequest, typ domain.TokenType, raw string, exp *time.Time, now time.Time) domain.Token {
	t := domain.Token{
		ID:        idx.New().String(),
		Type:      typ,
		Hash:      cryptox.FingerprintToken(raw),
		Scopes:    req.Scopes,
		ExpiresAt: exp,
		CreatedAt: now,
	}
	if req.Client != nil {
		t.ClientID = req.Client.ID
	}
	if req.User != nil {
		t.UserID = req.User.ID
	}
	if req.Email != "" && req.HasScope(ScopeEmail) {
		t.Data = map[string]any{"email": req.Email}
	}
	return t
}
