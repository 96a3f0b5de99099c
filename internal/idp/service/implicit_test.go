package service_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const implicitRedirect = "https://js.example.com/cb"

func (e *engine) implicitClient(t *testing.T) {
	t.Helper()
	e.mustClient(t, service.ClientParams{
		ID:            "js",
		Name:          "Browser App",
		Type:          domain.ClientTypePublic,
		Scopes:        []string{"openid", "email", "profile"},
		DefaultScopes: []string{"openid"},
		ResponseTypes: []string{domain.ResponseTypeToken, "token id_token"},
		RedirectURIs:  []string{implicitRedirect},
	})
}

// fragmentParams parses the parameters of a redirect that carries them in
// the fragment, and checks the query is untouched.
func fragmentParams(t *testing.T, loc string) url.Values {
	t.Helper()
	u, err := url.Parse(loc)
	require.NoError(t, err)
	require.Equal(t, implicitRedirect, u.Scheme+"://"+u.Host+u.Path)
	require.Empty(t, u.RawQuery)

	params, err := url.ParseQuery(u.EscapedFragment())
	require.NoError(t, err)
	return params
}

func TestImplicitFlow_IDTokenToken(t *testing.T) {
	e := newEngine(t)
	e.implicitClient(t)
	ctx := context.Background()

	areq, err := e.ValidateAuthorizationRequest(ctx, service.NewCall(), service.AuthorizationParams{
		ClientID:     "js",
		RedirectURI:  implicitRedirect,
		ResponseType: "token id_token",
		Scope:        "openid email",
		State:        "st-1",
		Nonce:        "n-1",
		Issuer:       testIssuer,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ResponseTypeIDTokenToken, areq.ResponseType)
	require.True(t, areq.Implicit())
	require.Empty(t, areq.CodeChallenge, "PKCE does not apply to implicit responses")

	loc, err := e.CreateAuthorization(ctx, areq, &e.alice, e.session(), areq.Scopes, "")
	require.NoError(t, err)

	params := fragmentParams(t, loc)
	access := params.Get("access_token")
	require.NotEmpty(t, access)
	require.Equal(t, "Bearer", params.Get("token_type"))
	require.Equal(t, "3600", params.Get("expires_in"))
	require.Equal(t, "openid email", params.Get("scope"))
	require.Equal(t, "st-1", params.Get("state"))
	require.False(t, params.Has("refresh_token"))
	require.False(t, params.Has("code"))

	claims, err := e.Keys.Verifier.Verify(params.Get("id_token"))
	require.NoError(t, err)
	require.Equal(t, e.alice.ID, claims.Subject)
	require.Equal(t, testIssuer, claims.Issuer)
	require.Equal(t, []string{"js"}, []string(claims.Audience))
	require.Equal(t, "n-1", claims.Nonce)
	require.Equal(t, jwtx.AccessTokenHash(access), claims.AtHash)
	require.Equal(t, "alice@example.com", claims.Email)

	info, err := e.UserInfo(ctx, service.BearerRequest{Token: access})
	require.NoError(t, err)
	require.Equal(t, e.alice.ID, info.Sub)
	require.Equal(t, "alice@example.com", info.Email)
}

func TestImplicitFlow_TokenOnly(t *testing.T) {
	e := newEngine(t)
	e.implicitClient(t)
	ctx := context.Background()

	areq, err := e.ValidateAuthorizationRequest(ctx, service.NewCall(), service.AuthorizationParams{
		ClientID:     "js",
		ResponseType: "token",
		Scope:        "openid profile",
		Issuer:       testIssuer,
	})
	require.NoError(t, err)

	loc, err := e.CreateAuthorization(ctx, areq, &e.alice, e.session(), []string{"openid"}, "")
	require.NoError(t, err)

	params := fragmentParams(t, loc)
	require.NotEmpty(t, params.Get("access_token"))
	require.Equal(t, "openid", params.Get("scope"), "only the approved scopes")
	require.False(t, params.Has("id_token"))
	require.False(t, params.Has("refresh_token"))
	require.False(t, params.Has("state"))
}

func TestImplicitFlow_Rejections(t *testing.T) {
	e := newEngine(t)
	e.implicitClient(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params service.AuthorizationParams
		want   error
	}{
		{
			name:   "id_token without nonce",
			params: service.AuthorizationParams{ClientID: "js", ResponseType: "id_token token", Scope: "openid", State: "s"},
			want:   service.ErrInvalidRequest,
		},
		{
			name:   "id_token without openid",
			params: service.AuthorizationParams{ClientID: "js", ResponseType: "id_token token", Scope: "email", Nonce: "n", State: "s"},
			want:   service.ErrInvalidScope,
		},
		{
			name:   "code for an implicit-only client",
			params: service.AuthorizationParams{ClientID: "js", ResponseType: "code", CodeChallenge: "abc", State: "s"},
			want:   service.ErrUnsupportedResponseType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ValidateAuthorizationRequest(ctx, service.NewCall(), tt.params)
			require.ErrorIs(t, err, tt.want)

			var aerr *service.AuthorizationError
			require.ErrorAs(t, err, &aerr)
			require.False(t, aerr.Fatal)

			loc, err := url.Parse(aerr.Location())
			require.NoError(t, err)
			params := loc.Query()
			if domain.IsImplicit(domain.NormalizeResponseType(tt.params.ResponseType)) {
				params = fragmentParams(t, aerr.Location())
			}
			require.Equal(t, tt.want.Error(), params.Get("error"))
			require.Equal(t, "s", params.Get("state"))
		})
	}
}

func TestImplicitFlow_ErrorsUseFragment(t *testing.T) {
	e := newEngine(t)
	e.implicitClient(t)
	ctx := context.Background()

	areq, err := e.ValidateAuthorizationRequest(ctx, service.NewCall(), service.AuthorizationParams{
		ClientID: "js", ResponseType: "token", Scope: "openid", State: "xyz", Issuer: testIssuer,
	})
	require.NoError(t, err)

	t.Run("silent without a session", func(t *testing.T) {
		loc, err := e.SilentAuthorization(ctx, nil, areq, nil)
		require.NoError(t, err)
		params := fragmentParams(t, loc)
		require.Equal(t, "login_required", params.Get("error"))
		require.Equal(t, "xyz", params.Get("state"))
	})

	t.Run("consent denied", func(t *testing.T) {
		pending := service.NewPendingAuthorization(areq, "sess-1")
		require.Equal(t, testIssuer, pending.Issuer)
		params := fragmentParams(t, pending.DenyLocation())
		require.Equal(t, "access_denied", params.Get("error"))
		require.Equal(t, "xyz", params.Get("state"))
	})

	t.Run("scope widened at consent", func(t *testing.T) {
		_, err := e.CreateAuthorization(ctx, areq, &e.alice, e.session(), []string{"openid", "email"}, "")
		require.ErrorIs(t, err, service.ErrInvalidScope)
		params := fragmentParams(t, areq.ErrorLocation(err, ""))
		require.Equal(t, "invalid_scope", params.Get("error"))
	})
}

func TestResponseTypesSupported_IncludesImplicit(t *testing.T) {
	e := newEngine(t)
	e.implicitClient(t)

	types, err := e.Clients.ResponseTypesSupported(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"code", "id_token token", "token"}, types)
}
