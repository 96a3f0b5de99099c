package service_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestValidateAuthorizationRequest(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		params   service.AuthorizationParams
		want     error
		fatal    bool
		redirect string
		fragment bool
	}{
		{
			name:   "unknown client",
			params: service.AuthorizationParams{ClientID: "nope", ResponseType: "code"},
			want:   service.ErrInvalidClient,
			fatal:  true,
		},
		{
			name:   "unregistered redirect",
			params: service.AuthorizationParams{ClientID: "web", RedirectURI: "https://evil.example.com/cb", ResponseType: "code"},
			want:   service.ErrInvalidRequest,
			fatal:  true,
		},
		{
			name:   "redirect with fragment",
			params: service.AuthorizationParams{ClientID: "web", RedirectURI: testRedirect + "#x", ResponseType: "code"},
			want:   service.ErrInvalidRequest,
			fatal:  true,
		},
		{
			name:     "missing response type",
			params:   service.AuthorizationParams{ClientID: "web", State: "s"},
			want:     service.ErrInvalidRequest,
			redirect: testRedirect,
		},
		{
			name:     "unregistered token response type",
			params:   service.AuthorizationParams{ClientID: "web", ResponseType: "token", State: "s"},
			want:     service.ErrUnsupportedResponseType,
			redirect: testRedirect,
			fragment: true,
		},
		{
			name:     "hybrid response type",
			params:   service.AuthorizationParams{ClientID: "web", ResponseType: "code id_token"},
			want:     service.ErrUnsupportedResponseType,
			redirect: testRedirect,
		},
		{
			name:     "scope outside registration",
			params:   service.AuthorizationParams{ClientID: "web", ResponseType: "code", Scope: "openid admin"},
			want:     service.ErrInvalidScope,
			redirect: testRedirect,
		},
		{
			name:     "public client without PKCE",
			params:   service.AuthorizationParams{ClientID: "spa", RedirectURI: "http://127.0.0.1/callback", ResponseType: "code"},
			want:     service.ErrInvalidRequest,
			redirect: "http://127.0.0.1/callback",
		},
		{
			name: "unknown PKCE method",
			params: service.AuthorizationParams{ClientID: "web", ResponseType: "code",
				CodeChallenge: "abc", CodeChallengeMethod: "S512"},
			want:     service.ErrInvalidRequest,
			redirect: testRedirect,
		},
		{
			name:     "prompt none with login",
			params:   service.AuthorizationParams{ClientID: "web", ResponseType: "code", Prompt: "none login"},
			want:     service.ErrInvalidRequest,
			redirect: testRedirect,
		},
		{
			name:     "malformed claims",
			params:   service.AuthorizationParams{ClientID: "web", ResponseType: "code", Claims: "{"},
			want:     service.ErrInvalidRequest,
			redirect: testRedirect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ValidateAuthorizationRequest(ctx, service.NewCall(), tt.params)
			require.ErrorIs(t, err, tt.want)

			var aerr *service.AuthorizationError
			require.True(t, errors.As(err, &aerr))
			require.Equal(t, tt.fatal, aerr.Fatal)
			if !tt.fatal {
				loc, err := url.Parse(aerr.Location())
				require.NoError(t, err)
				require.Equal(t, tt.redirect, loc.Scheme+"://"+loc.Host+loc.Path)

				params := loc.Query()
				if tt.fragment {
					require.Empty(t, loc.RawQuery)
					params, err = url.ParseQuery(loc.EscapedFragment())
					require.NoError(t, err)
				}
				require.Equal(t, tt.want.Error(), params.Get("error"))
				require.Equal(t, tt.params.State, params.Get("state"))
			}
		})
	}
}

func TestValidateAuthorizationRequest_Defaults(t *testing.T) {
	e := newEngine(t)

	areq, err := e.ValidateAuthorizationRequest(context.Background(), nil, service.AuthorizationParams{
		ClientID:      "web",
		ResponseType:  "code",
		CodeChallenge: "challenge",
		Prompt:        "login consent",
		Claims:        `{"userinfo":{"email":null}}`,
	})
	require.NoError(t, err)
	require.Equal(t, testRedirect, areq.RedirectURI, "single registered uri is the default")
	require.Empty(t, areq.RedirectURIParam)
	require.Equal(t, []string{"openid"}, areq.Scopes, "empty scope uses the client defaults")
	require.Equal(t, service.PKCEMethodS256, areq.CodeChallengeMethod)
	require.True(t, areq.HasPrompt(service.PromptConsent))
	require.False(t, areq.HasPrompt(service.PromptNone))
	require.Contains(t, areq.Claims, "userinfo")
}

func TestCreateAuthorization(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	areq, err := e.ValidateAuthorizationRequest(ctx, nil, service.AuthorizationParams{
		ClientID: "web", ResponseType: "code", Scope: "openid email", State: "abc",
	})
	require.NoError(t, err)

	_, err = e.CreateAuthorization(ctx, areq, &e.alice, e.session(), []string{"openid", "profile"}, "")
	require.ErrorIs(t, err, service.ErrInvalidScope, "approved scopes cannot exceed the request")

	_, err = e.CreateAuthorization(ctx, areq, &e.alice, e.session(), []string{"openid"}, "other@example.com")
	require.ErrorIs(t, err, service.ErrInvalidRequest)

	loc, err := e.CreateAuthorization(ctx, areq, &e.alice, e.session(), []string{"openid"}, "alice@example.com")
	require.NoError(t, err)
	u, err := url.Parse(loc)
	require.NoError(t, err)

	rec, err := e.codes.Lookup(ctx, service.NewCall(), "web", u.Query().Get("code"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Empty(t, rec.Email, "primary address is not stored as an override")
	require.Equal(t, []string{"openid"}, rec.Scopes)
	require.Equal(t, "sess-1", rec.SessionID)

	t.Run("codes expire", func(t *testing.T) {
		e.clock.Advance(service.DefaultAuthorizationCodeTTL + time.Second)
		rec, err := e.codes.Lookup(ctx, nil, "web", u.Query().Get("code"))
		require.NoError(t, err)
		require.Nil(t, rec)
	})

	t.Run("invalidate", func(t *testing.T) {
		code := e.authorize(t, service.AuthorizationParams{ClientID: "web", ResponseType: "code"})
		require.NoError(t, e.codes.Invalidate(ctx, "web", code))
		rec, err := e.codes.Lookup(ctx, nil, "web", code)
		require.NoError(t, err)
		require.Nil(t, rec)
	})
}

func TestSilentAuthorization(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	areq, err := e.ValidateAuthorizationRequest(ctx, nil, service.AuthorizationParams{
		ClientID: "web", ResponseType: "code", Scope: "openid", Prompt: "none", State: "s1",
	})
	require.NoError(t, err)

	t.Run("no session", func(t *testing.T) {
		loc, err := e.SilentAuthorization(ctx, nil, areq, nil)
		require.NoError(t, err)
		u, _ := url.Parse(loc)
		require.Equal(t, "login_required", u.Query().Get("error"))
		require.Equal(t, "s1", u.Query().Get("state"))
	})

	t.Run("session", func(t *testing.T) {
		loc, err := e.SilentAuthorization(ctx, nil, areq, e.session())
		require.NoError(t, err)
		u, _ := url.Parse(loc)
		require.NotEmpty(t, u.Query().Get("code"))
	})

	t.Run("hint for another user", func(t *testing.T) {
		hint, err := e.Keys.GetSigner().Sign(jwtx.NewIDClaims("someone-else", "web", "", time.Time{}, time.Minute, testIssuer, e.clock.Now()))
		require.NoError(t, err)

		withHint := *areq
		withHint.IDTokenHint = hint
		loc, err := e.SilentAuthorization(ctx, nil, &withHint, e.session())
		require.NoError(t, err)
		u, _ := url.Parse(loc)
		require.Equal(t, "login_required", u.Query().Get("error"))
		require.Equal(t, "session user does not match client-supplied user", u.Query().Get("error_description"))
	})

	t.Run("expired hint for the session user", func(t *testing.T) {
		hint, err := e.Keys.GetSigner().Sign(jwtx.NewIDClaims(e.alice.ID, "web", "", time.Time{}, time.Minute, testIssuer, e.clock.Now().Add(-time.Hour)))
		require.NoError(t, err)

		_, err = e.Validator.ValidateSilentAuthorization(ctx, nil, e.session(), areq.Client, hint)
		require.NoError(t, err)
	})
}

func TestDenyLocation(t *testing.T) {
	loc, err := url.Parse(service.DenyLocation("https://app.example.com/cb?keep=1", "xyz"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", loc.Query().Get("error"))
	require.Equal(t, "xyz", loc.Query().Get("state"))
	require.Equal(t, "1", loc.Query().Get("keep"))
}

func TestLogout(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	code := e.authorize(t, service.AuthorizationParams{
		ClientID: "web", RedirectURI: testRedirect, ResponseType: "code", Scope: "openid",
	})
	out, err := e.Token(ctx, service.TokenParams{
		GrantType: domain.GrantTypeAuthorizationCode, ClientID: "web", ClientSecret: testSecret,
		Code: code, RedirectURI: testRedirect, Issuer: testIssuer,
	})
	require.NoError(t, err)

	t.Run("unregistered redirect falls back", func(t *testing.T) {
		res, err := e.ResolveLogout(ctx, service.LogoutParams{ClientID: "web", PostLogoutRedirectURI: "https://evil.example.com/"})
		require.NoError(t, err)
		require.Equal(t, "/", res.RedirectURI)
		require.Equal(t, "web", res.Client.ID)
	})

	t.Run("hint audience mismatch drops the client", func(t *testing.T) {
		res, err := e.ResolveLogout(ctx, service.LogoutParams{
			IDTokenHint: out.IDToken, ClientID: "spa", PostLogoutRedirectURI: testRedirect,
		})
		require.NoError(t, err)
		require.Nil(t, res.Client)
		require.Equal(t, "/", res.RedirectURI)
	})

	t.Run("garbage hint is ignored", func(t *testing.T) {
		res, err := e.ResolveLogout(ctx, service.LogoutParams{IDTokenHint: "not.a.jwt", ClientID: "web"})
		require.NoError(t, err)
		require.Equal(t, "web", res.Client.ID)
	})

	res, err := e.Logout(ctx, e.session(), service.LogoutParams{
		IDTokenHint: out.IDToken, PostLogoutRedirectURI: testRedirect, State: "bye",
	})
	require.NoError(t, err)
	require.Equal(t, testRedirect+"?state=bye", res.RedirectURI)
	require.EqualValues(t, 2, res.Revoked)

	_, err = e.UserInfo(ctx, service.BearerRequest{Token: out.AccessToken})
	require.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestConsentSigner(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	signer := service.NewConsentSigner([]byte("0123456789abcdef0123456789abcdef"), time.Minute)

	areq, err := e.ValidateAuthorizationRequest(ctx, nil, service.AuthorizationParams{
		ClientID: "web", ResponseType: "code", Scope: "openid email", State: "st", Nonce: "n",
	})
	require.NoError(t, err)

	token, err := signer.Sign(service.NewPendingAuthorization(areq, "sess-1"))
	require.NoError(t, err)

	pending, err := signer.Verify(token, "sess-1")
	require.NoError(t, err)

	resumed, err := e.Resume(ctx, nil, pending)
	require.NoError(t, err)
	require.Equal(t, areq.Scopes, resumed.Scopes)
	require.Equal(t, areq.RedirectURI, resumed.RedirectURI)
	require.Equal(t, "n", resumed.Nonce)

	_, err = signer.Verify(token, "sess-2")
	require.ErrorIs(t, err, service.ErrInvalidConsent, "bound to the session")

	tampered := []byte(token)
	tampered[len(tampered)/2] ^= 0x01
	_, err = signer.Verify(string(tampered), "sess-1")
	require.ErrorIs(t, err, service.ErrInvalidConsent)

	other := service.NewConsentSigner([]byte("fedcba9876543210fedcba9876543210"), time.Minute)
	_, err = other.Verify(token, "sess-1")
	require.ErrorIs(t, err, service.ErrInvalidConsent)
}
