package idp_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func implicitURL(srv string, params url.Values) string {
	params.Set("client_id", jsClientID)
	params.Set("redirect_uri", jsRedirectURI)
	return srv + "/identity/oidc/authorize?" + params.Encode()
}

// consentPage signs in from an authorization redirect and returns the
// consent page the browser lands on.
func consentPage(t *testing.T, b *browser, authURL, clientName string) string {
	t.Helper()

	resp, _ := b.get(authURL)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	next := b.login(resp.Header.Get("Location"), aliceUsername, alicePassword)

	resp, page := b.get(next)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, page, clientName)
	return page
}

func TestImplicitFlow(t *testing.T) {
	srv := setupIdP(t)
	b := newBrowser(t, srv)

	page := consentPage(t, b, implicitURL(srv.URL, url.Values{
		"response_type": {"id_token token"},
		"scope":         {"openid email"},
		"state":         {"st-i"},
		"nonce":         {"n-i"},
	}), "Browser Widget")

	resp, _ := b.post("/identity/oidc/authorize", url.Values{
		"csrf_token": {hiddenField(t, page, "csrf_token")},
		"request":    {hiddenField(t, page, "request")},
		"action":     {"grant"},
		"scope":      {"openid", "email"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	cb := fragmentParams(t, resp.Header.Get("Location"), jsRedirectURI)
	require.Equal(t, "st-i", cb.Get("state"))
	require.Equal(t, "Bearer", cb.Get("token_type"))
	require.Equal(t, "openid email", cb.Get("scope"))
	require.NotEmpty(t, cb.Get("expires_in"))
	require.Empty(t, cb.Get("refresh_token"))
	require.Empty(t, cb.Get("code"))

	access := cb.Get("access_token")
	claims := verifyIDToken(t, srv, cb.Get("id_token"), jsClientID)
	require.Equal(t, "n-i", claims.Nonce)
	require.Equal(t, jwtx.AccessTokenHash(access), claims.AtHash)

	sdk := authsdk.NewClient(srv.URL)
	doc, err := sdk.Discover(t.Context())
	require.NoError(t, err)
	info, err := sdk.UserInfo(t.Context(), doc, access)
	require.NoError(t, err)
	require.Equal(t, claims.Subject, info.Sub)
	require.Equal(t, aliceEmail, info.Email)

	// The refresh-less token cannot be used at the token endpoint either.
	resp, err = http.PostForm(srv.URL+"/identity/oidc/token", url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {jsClientID},
		"refresh_token": {access},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImplicitFlow_Deny(t *testing.T) {
	srv := setupIdP(t)
	b := newBrowser(t, srv)

	page := consentPage(t, b, implicitURL(srv.URL, url.Values{
		"response_type": {"token"},
		"scope":         {"openid"},
		"state":         {"st-d"},
	}), "Browser Widget")

	resp, _ := b.post("/identity/oidc/authorize", url.Values{
		"csrf_token": {hiddenField(t, page, "csrf_token")},
		"request":    {hiddenField(t, page, "request")},
		"action":     {"deny"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	cb := fragmentParams(t, resp.Header.Get("Location"), jsRedirectURI)
	require.Equal(t, "access_denied", cb.Get("error"))
	require.Equal(t, "st-d", cb.Get("state"))
	require.Empty(t, cb.Get("access_token"))
}

func TestImplicitFlow_MissingNonce(t *testing.T) {
	srv := setupIdP(t)
	b := newBrowser(t, srv)

	resp, _ := b.get(implicitURL(srv.URL, url.Values{
		"response_type": {"id_token token"},
		"scope":         {"openid"},
		"state":         {"st-n"},
	}))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	cb := fragmentParams(t, resp.Header.Get("Location"), jsRedirectURI)
	require.Equal(t, "invalid_request", cb.Get("error"))
	require.Equal(t, "st-n", cb.Get("state"))
}
