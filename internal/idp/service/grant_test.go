package service_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// authorize runs the authorization endpoint for alice and returns the code.
func (e *engine) authorize(t *testing.T, p service.AuthorizationParams) string {
	t.Helper()
	ctx := context.Background()

	areq, err := e.ValidateAuthorizationRequest(ctx, service.NewCall(), p)
	require.NoError(t, err)

	loc, err := e.CreateAuthorization(ctx, areq, &e.alice, e.session(), areq.Scopes, "")
	require.NoError(t, err)

	u, err := url.Parse(loc)
	require.NoError(t, err)
	require.Equal(t, p.State, u.Query().Get("state"))
	code := u.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestAuthorizationCodeFlow(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	code := e.authorize(t, service.AuthorizationParams{
		ClientID:     "web",
		RedirectURI:  testRedirect,
		ResponseType: "code",
		Scope:        "openid email profile",
		State:        "st-1",
		Nonce:        "n-1",
	})

	out, err := e.Token(ctx, service.TokenParams{
		GrantType:    domain.GrantTypeAuthorizationCode,
		ClientID:     "web",
		ClientSecret: testSecret,
		Code:         code,
		RedirectURI:  testRedirect,
		Issuer:       testIssuer,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.AccessToken)
	require.NotEmpty(t, out.RefreshToken)
	require.NotEmpty(t, out.IDToken)
	require.Equal(t, time.Hour, out.ExpiresIn)
	require.ElementsMatch(t, []string{"openid", "email", "profile"}, out.Scopes)

	claims, err := e.Keys.Verifier.Verify(out.IDToken)
	require.NoError(t, err)
	require.Equal(t, e.alice.ID, claims.Subject)
	require.Equal(t, testIssuer, claims.Issuer)
	require.Equal(t, []string{"web"}, []string(claims.Audience))
	require.Equal(t, "n-1", claims.Nonce)
	require.Equal(t, "sess-1", claims.SID)
	require.Equal(t, []string{service.AMRPassword}, claims.AMR)
	require.Equal(t, jwtx.AccessTokenHash(out.AccessToken), claims.AtHash)
	require.Equal(t, "alice@example.com", claims.Email)
	require.NotNil(t, claims.EmailVerified)
	require.True(t, *claims.EmailVerified)
	require.Equal(t, "alice", claims.PreferredUsername)
	require.NotEmpty(t, claims.ID)

	t.Run("code is single use", func(t *testing.T) {
		_, err := e.Token(ctx, service.TokenParams{
			GrantType:    domain.GrantTypeAuthorizationCode,
			ClientID:     "web",
			ClientSecret: testSecret,
			Code:         code,
			RedirectURI:  testRedirect,
			Issuer:       testIssuer,
		})
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("userinfo", func(t *testing.T) {
		info, err := e.UserInfo(ctx, service.BearerRequest{Token: out.AccessToken})
		require.NoError(t, err)
		require.Equal(t, e.alice.ID, info.Sub)
		require.Equal(t, "alice@example.com", info.Email)
		require.Equal(t, "Alice Example", info.Name)
		require.Equal(t, "alice", info.PreferredUsername)
	})

	t.Run("token in query is refused", func(t *testing.T) {
		_, err := e.UserInfo(ctx, service.BearerRequest{Token: out.AccessToken, InQuery: true})
		require.ErrorIs(t, err, service.ErrInvalidToken)
	})
}

func TestAuthorizationCode_WrongSecret(t *testing.T) {
	e := newEngine(t)

	code := e.authorize(t, service.AuthorizationParams{
		ClientID: "web", RedirectURI: testRedirect, ResponseType: "code", Scope: "openid",
	})

	_, err := e.Token(context.Background(), service.TokenParams{
		GrantType:    domain.GrantTypeAuthorizationCode,
		ClientID:     "web",
		ClientSecret: "wrong",
		Code:         code,
		RedirectURI:  testRedirect,
	})
	require.ErrorIs(t, err, service.ErrInvalidClient)
}

func TestAuthorizationCode_RedirectBinding(t *testing.T) {
	e := newEngine(t)

	code := e.authorize(t, service.AuthorizationParams{
		ClientID: "web", RedirectURI: testRedirect, ResponseType: "code", Scope: "openid",
	})

	_, err := e.Token(context.Background(), service.TokenParams{
		GrantType:    domain.GrantTypeAuthorizationCode,
		ClientID:     "web",
		ClientSecret: testSecret,
		Code:         code,
	})
	require.ErrorIs(t, err, service.ErrInvalidGrant)
}

func TestAuthorizationCode_ConcurrentRedemption(t *testing.T) {
	e := newEngine(t)

	code := e.authorize(t, service.AuthorizationParams{
		ClientID: "web", RedirectURI: testRedirect, ResponseType: "code", Scope: "openid",
	})

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		issued []*domain.IssuedTokens
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Token(context.Background(), service.TokenParams{
				GrantType:    domain.GrantTypeAuthorizationCode,
				ClientID:     "web",
				ClientSecret: testSecret,
				Code:         code,
				RedirectURI:  testRedirect,
				Issuer:       testIssuer,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			issued = append(issued, out)
		}()
	}
	wg.Wait()

	require.Len(t, issued, 1)
	require.NotEmpty(t, issued[0].AccessToken)
	require.Len(t, errs, 7)
	for _, err := range errs {
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	}
}

func TestAuthorizationCode_PKCE(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	code := e.authorize(t, service.AuthorizationParams{
		ClientID:      "spa",
		RedirectURI:   "http://127.0.0.1:51234/callback",
		ResponseType:  "code",
		Scope:         "openid",
		CodeChallenge: s256(verifier),
	})

	params := service.TokenParams{
		GrantType:    domain.GrantTypeAuthorizationCode,
		ClientID:     "spa",
		Code:         code,
		RedirectURI:  "http://127.0.0.1:51234/callback",
		CodeVerifier: "not-the-verifier",
		Issuer:       testIssuer,
	}

	_, err := e.Token(ctx, params)
	require.ErrorIs(t, err, service.ErrInvalidGrant)

	// A failed verifier burns the code.
	params.CodeVerifier = verifier
	_, err = e.Token(ctx, params)
	require.ErrorIs(t, err, service.ErrInvalidGrant)

	code = e.authorize(t, service.AuthorizationParams{
		ClientID:      "spa",
		RedirectURI:   "http://127.0.0.1:51234/callback",
		ResponseType:  "code",
		Scope:         "openid",
		CodeChallenge: s256(verifier),
	})
	params.Code = code
	out, err := e.Token(ctx, params)
	require.NoError(t, err)
	require.NotEmpty(t, out.IDToken)
}

func TestRefreshTokenRotation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	code := e.authorize(t, service.AuthorizationParams{
		ClientID: "web", RedirectURI: testRedirect, ResponseType: "code", Scope: "openid email",
	})
	first, err := e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeAuthorizationCode, ClientID: "web", ClientSecret: testSecret,
		Code: code, RedirectURI: testRedirect, Issuer: testIssuer,
	})
	require.NoError(t, err)

	refresh := func(token string, scopes ...string) (*domain.IssuedTokens, error) {
		return e.Token(ctx, service.TokenParams{
			GrantType: domain.GrantTypeRefreshToken, ClientID: "web", ClientSecret: testSecret,
			RefreshToken: token, Scopes: scopes, Issuer: testIssuer,
		})
	}

	_, err = refresh(first.RefreshToken, "openid", "profile")
	require.ErrorIs(t, err, service.ErrInvalidScope)

	second, err := refresh(first.RefreshToken, "openid")
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.ElementsMatch(t, []string{"openid", "email"}, second.Scopes, "narrower request keeps the original scopes")
	require.NotEmpty(t, second.IDToken)

	_, err = refresh(first.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidGrant, "rotated token is gone")

	t.Run("concurrent use has one winner", func(t *testing.T) {
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := refresh(second.RefreshToken)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			require.ErrorIs(t, err, service.ErrInvalidGrant)
		}
		require.Equal(t, 1, wins)
	})
}

func TestRefreshToken_NoRotation(t *testing.T) {
	e := newEngine(t, func(s *service.Settings) { s.RotateRefreshToken = false })
	ctx := context.Background()

	code := e.authorize(t, service.AuthorizationParams{
		ClientID: "web", RedirectURI: testRedirect, ResponseType: "code", Scope: "api",
	})
	first, err := e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeAuthorizationCode, ClientID: "web", ClientSecret: testSecret,
		Code: code, RedirectURI: testRedirect,
	})
	require.NoError(t, err)
	require.Empty(t, first.IDToken)

	for range 2 {
		out, err := e.Token(ctx, service.TokenParams{
			GrantType: domain.GrantTypeRefreshToken, ClientID: "web", ClientSecret: testSecret,
			RefreshToken: first.RefreshToken,
		})
		require.NoError(t, err)
		require.Equal(t, first.RefreshToken, out.RefreshToken)
		require.NotEqual(t, first.AccessToken, out.AccessToken)
	}
}

func TestClientCredentials(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	out, err := e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeClientCredentials, ClientID: "worker", ClientSecret: testSecret,
	})
	require.NoError(t, err)
	require.Empty(t, out.RefreshToken)
	require.Empty(t, out.IDToken)
	require.Equal(t, []string{"api"}, out.Scopes)

	tok, user, err := e.Validator.ValidateBearerToken(ctx, service.BearerRequest{Token: out.AccessToken}, []string{"api"})
	require.NoError(t, err)
	require.Nil(t, user)
	require.Equal(t, "worker", tok.ClientID)

	_, _, err = e.Validator.ValidateBearerToken(ctx, service.BearerRequest{Token: out.AccessToken}, []string{"openid"})
	require.ErrorIs(t, err, service.ErrInsufficientScope)

	_, err = e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeClientCredentials, ClientID: "worker", ClientSecret: testSecret,
		Scopes: []string{"admin"},
	})
	require.ErrorIs(t, err, service.ErrInvalidScope)

	_, err = e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeClientCredentials, ClientID: "spa",
	})
	require.ErrorIs(t, err, service.ErrUnauthorizedClient)
}

func TestJWTAccessTokens(t *testing.T) {
	e := newEngine(t, func(s *service.Settings) { s.AccessTokenFormat = service.AccessTokenJWT })
	ctx := context.Background()

	out, err := e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeClientCredentials, ClientID: "worker", ClientSecret: testSecret,
		Issuer: testIssuer,
	})
	require.NoError(t, err)

	claims, err := e.Keys.Verifier.Verify(out.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "worker", claims.Subject)
	require.Equal(t, "worker", claims.ClientID)
	require.Equal(t, []string{"api"}, claims.Scopes())

	// Revocable like an opaque token.
	require.NoError(t, e.Revoke(ctx, out.AccessToken, service.HintAccessToken))
	_, _, err = e.Validator.ValidateBearerToken(ctx, service.BearerRequest{Token: out.AccessToken}, nil)
	require.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestTokenGrantTypes(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params service.TokenParams
		want   error
	}{
		{"missing grant type", service.TokenParams{ClientID: "web"}, service.ErrInvalidRequest},
		{"unknown grant type", service.TokenParams{GrantType: "implicit", ClientID: "web"}, service.ErrUnsupportedGrantType},
		{"unknown client", service.TokenParams{GrantType: domain.GrantTypeClientCredentials, ClientID: "nope"}, service.ErrInvalidClient},
		{"password grant", service.TokenParams{GrantType: domain.GrantTypePassword, ClientID: "web", ClientSecret: testSecret, Username: "alice", Password: testPassword}, service.ErrUnsupportedGrantType},
		{"grant not registered", service.TokenParams{GrantType: domain.GrantTypeRefreshToken, ClientID: "worker", ClientSecret: testSecret, RefreshToken: "x"}, service.ErrUnauthorizedClient},
		{"missing code", service.TokenParams{GrantType: domain.GrantTypeAuthorizationCode, ClientID: "web", ClientSecret: testSecret}, service.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Token(ctx, tt.params)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, tt.want.Error(), service.ErrorCode(err))
		})
	}
}

func TestPasswordGrant_RegisteredClient(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	// Registration refuses the password grant, so plant the client directly.
	require.NoError(t, e.store.Clients().CreateClient(ctx, domain.Client{
		ID:         "legacy",
		Type:       domain.ClientTypePublic,
		GrantTypes: []string{domain.GrantTypePassword},
	}))

	_, err := e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypePassword, ClientID: "legacy", Username: "alice", Password: testPassword,
	})
	require.ErrorIs(t, err, service.ErrInvalidGrant)
	require.Equal(t, "Invalid credentials given", service.Description(err))
}

func TestRevoke(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	code := e.authorize(t, service.AuthorizationParams{
		ClientID: "web", RedirectURI: testRedirect, ResponseType: "code", Scope: "openid",
	})
	out, err := e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeAuthorizationCode, ClientID: "web", ClientSecret: testSecret,
		Code: code, RedirectURI: testRedirect,
	})
	require.NoError(t, err)

	// A mismatched hint leaves the token alone.
	require.NoError(t, e.Revoke(ctx, out.RefreshToken, service.HintAccessToken))
	_, err = e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeRefreshToken, ClientID: "web", ClientSecret: testSecret,
		RefreshToken: out.RefreshToken,
	})
	require.NoError(t, err)

	require.NoError(t, e.Revoke(ctx, "unknown-token", ""))
	require.NoError(t, e.Revoke(ctx, out.AccessToken, ""))

	_, err = e.UserInfo(ctx, service.BearerRequest{Token: out.AccessToken})
	require.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestAccessTokenExpiry(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	out, err := e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeClientCredentials, ClientID: "worker", ClientSecret: testSecret,
	})
	require.NoError(t, err)

	e.clock.Advance(time.Hour + time.Second)
	_, _, err = e.Validator.ValidateBearerToken(ctx, service.BearerRequest{Token: out.AccessToken}, nil)
	require.ErrorIs(t, err, service.ErrInvalidToken)

	hk := service.NewHousekeepingService(e.Tokens, slogx.Discard(), time.Hour)
	require.EqualValues(t, 1, hk.Cleanup(ctx))
}

func TestInactiveUser(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	code := e.authorize(t, service.AuthorizationParams{
		ClientID: "web", RedirectURI: testRedirect, ResponseType: "code", Scope: "openid",
	})
	require.NoError(t, e.store.Users().SetActive(ctx, e.alice.ID, false))

	_, err := e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeAuthorizationCode, ClientID: "web", ClientSecret: testSecret,
		Code: code, RedirectURI: testRedirect,
	})
	require.ErrorIs(t, err, service.ErrInvalidGrant)
}
