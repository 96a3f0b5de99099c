package idp_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/idp/internal/idp/app"
	"github.com/aussiebroadwan/idp/internal/idp/cache"
	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestAuthorizationCodeFlow(t *testing.T) {
	srv := setupIdP(t)
	ctx := oauthContext(t, srv)
	b := newBrowser(t, srv)
	conf := webConfig(srv, "openid", "profile", "email", "offline_access")

	verifier := oauth2.GenerateVerifier()
	authURL := conf.AuthCodeURL("xyz",
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", "n-0S6_WzA2Mj"),
	)

	cb := authorizeWithConsent(t, b, authURL, url.Values{
		"scope": {"openid", "profile", "email", "offline_access"},
		"email": {aliceEmail},
	})
	require.Equal(t, "xyz", cb.Get("state"))
	require.NotEmpty(t, cb.Get("code"))

	tok, err := conf.Exchange(ctx, cb.Get("code"), oauth2.VerifierOption(verifier))
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.NotEmpty(t, tok.RefreshToken)
	require.Equal(t, "Bearer", tok.TokenType)

	rawID, ok := tok.Extra("id_token").(string)
	require.True(t, ok)
	claims := verifyIDToken(t, srv, rawID, webClientID)
	require.Equal(t, "n-0S6_WzA2Mj", claims.Nonce)
	require.Equal(t, aliceEmail, claims.Email)
	require.Equal(t, []string{"pwd"}, claims.AMR)
	require.NotEmpty(t, claims.SID)

	sdk := authsdk.NewClient(srv.URL)
	doc, err := sdk.Discover(t.Context())
	require.NoError(t, err)
	info, err := sdk.UserInfo(t.Context(), doc, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, claims.Subject, info.Sub)
	require.Equal(t, aliceEmail, info.Email)
	require.Equal(t, aliceUsername, info.PreferredUsername)

	// A code is single use.
	_, err = conf.Exchange(ctx, cb.Get("code"), oauth2.VerifierOption(verifier))
	assertOAuthError(t, err, "invalid_grant")
}

func TestAuthorizationCodeFlow_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := setupIdP(t, func(cfg *app.Config) {
		cfg.Cache = cache.Config{
			Driver: cache.DriverRedis,
			Redis:  cache.RedisConfig{Addr: mr.Addr(), Prefix: "idp:"},
		}
	})
	ctx := oauthContext(t, srv)
	b := newBrowser(t, srv)
	conf := webConfig(srv, "openid", "profile")

	verifier := oauth2.GenerateVerifier()
	cb := authorizeWithConsent(t, b, conf.AuthCodeURL("st", oauth2.S256ChallengeOption(verifier)), url.Values{
		"scope": {"openid", "profile"},
	})

	// The code lives in redis until it is exchanged.
	require.NotEmpty(t, mr.Keys())

	tok, err := conf.Exchange(ctx, cb.Get("code"), oauth2.VerifierOption(verifier))
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
}

func TestAuthorizationCodeFlow_PartialConsent(t *testing.T) {
	srv := setupIdP(t)
	ctx := oauthContext(t, srv)
	b := newBrowser(t, srv)
	conf := webConfig(srv, "openid", "profile", "email")

	cb := authorizeWithConsent(t, b, conf.AuthCodeURL("s"), url.Values{
		"scope": {"openid"},
	})

	tok, err := conf.Exchange(ctx, cb.Get("code"))
	require.NoError(t, err)
	require.Equal(t, "openid", tok.Extra("scope"))

	sdk := authsdk.NewClient(srv.URL)
	doc, err := sdk.Discover(t.Context())
	require.NoError(t, err)
	info, err := sdk.UserInfo(t.Context(), doc, tok.AccessToken)
	require.NoError(t, err)
	require.Empty(t, info.Email)
	require.Empty(t, info.Name)
}

func TestAuthorizationCodeFlow_PublicClientSkipsConsent(t *testing.T) {
	srv := setupIdP(t)
	ctx := oauthContext(t, srv)
	b := newBrowser(t, srv)
	conf := publicConfig(srv, spaClientID, spaRedirectURI, "openid", "profile")

	// Public clients must use PKCE.
	resp, _ := b.get(conf.AuthCodeURL("s"))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	cb := callbackParams(t, resp.Header.Get("Location"), spaRedirectURI)
	require.Equal(t, "invalid_request", cb.Get("error"))

	verifier := oauth2.GenerateVerifier()
	resp, _ = b.get(conf.AuthCodeURL("s", oauth2.S256ChallengeOption(verifier)))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	next := b.login(resp.Header.Get("Location"), aliceUsername, alicePassword)

	// No consent page: the authorize request answers with the code.
	resp, _ = b.get(next)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	cb = callbackParams(t, resp.Header.Get("Location"), spaRedirectURI)
	require.NotEmpty(t, cb.Get("code"))

	_, err := conf.Exchange(ctx, cb.Get("code"), oauth2.VerifierOption("wrong-"+verifier))
	assertOAuthError(t, err, "invalid_grant")

	// The failed exchange consumed the code.
	_, err = conf.Exchange(ctx, cb.Get("code"), oauth2.VerifierOption(verifier))
	assertOAuthError(t, err, "invalid_grant")
}

func TestAuthorize_PromptNone(t *testing.T) {
	srv := setupIdP(t)
	b := newBrowser(t, srv)
	conf := publicConfig(srv, spaClientID, spaRedirectURI, "openid")
	verifier := oauth2.GenerateVerifier()

	silent := conf.AuthCodeURL("s", oauth2.S256ChallengeOption(verifier), oauth2.SetAuthURLParam("prompt", "none"))

	resp, _ := b.get(silent)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	cb := callbackParams(t, resp.Header.Get("Location"), spaRedirectURI)
	require.Equal(t, "login_required", cb.Get("error"))
	require.Equal(t, "s", cb.Get("state"))

	b.signIn(aliceUsername, alicePassword)

	resp, _ = b.get(silent)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	cb = callbackParams(t, resp.Header.Get("Location"), spaRedirectURI)
	require.NotEmpty(t, cb.Get("code"))
}

func TestAuthorize_PromptLoginEndsSession(t *testing.T) {
	srv := setupIdP(t)
	b := newBrowser(t, srv)
	conf := publicConfig(srv, spaClientID, spaRedirectURI, "openid")
	verifier := oauth2.GenerateVerifier()

	b.signIn(aliceUsername, alicePassword)

	resp, _ := b.get(conf.AuthCodeURL("s", oauth2.S256ChallengeOption(verifier), oauth2.SetAuthURLParam("prompt", "login")))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(loc, "/identity/login?next="))

	next, err := url.Parse(loc)
	require.NoError(t, err)
	require.NotContains(t, next.Query().Get("next"), "prompt")

	// The session is gone, so the retried request needs a new sign in.
	resp, _ = b.get(next.Query().Get("next"))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/identity/login"))
}

func TestAuthorize_UnknownClientShowsErrorPage(t *testing.T) {
	srv := setupIdP(t)
	b := newBrowser(t, srv)

	resp, page := b.get("/identity/oidc/authorize?response_type=code&client_id=nope&redirect_uri=" +
		url.QueryEscape(webRedirectURI))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Location"))
	require.Contains(t, page, "invalid_client")
}

func TestAuthorize_UnregisteredRedirectShowsErrorPage(t *testing.T) {
	srv := setupIdP(t)
	b := newBrowser(t, srv)

	resp, _ := b.get("/identity/oidc/authorize?response_type=code&client_id=web&redirect_uri=" +
		url.QueryEscape("https://evil.example.com/cb"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Location"))
}

func TestConsent_Deny(t *testing.T) {
	srv := setupIdP(t)
	b := newBrowser(t, srv)
	conf := webConfig(srv, "openid")

	resp, _ := b.get(conf.AuthCodeURL("st"))
	next := b.login(resp.Header.Get("Location"), aliceUsername, alicePassword)
	_, page := b.get(next)

	resp, _ = b.post("/identity/oidc/authorize", url.Values{
		"csrf_token": {hiddenField(t, page, "csrf_token")},
		"request":    {hiddenField(t, page, "request")},
		"action":     {"deny"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	cb := callbackParams(t, resp.Header.Get("Location"), webRedirectURI)
	require.Equal(t, "access_denied", cb.Get("error"))
	require.Equal(t, "st", cb.Get("state"))
	require.Empty(t, cb.Get("code"))
}

func TestConsent_RejectsTamperedRequest(t *testing.T) {
	srv := setupIdP(t)
	b := newBrowser(t, srv)
	conf := webConfig(srv, "openid")

	resp, _ := b.get(conf.AuthCodeURL("st"))
	next := b.login(resp.Header.Get("Location"), aliceUsername, alicePassword)
	_, page := b.get(next)

	csrf := hiddenField(t, page, "csrf_token")
	request := hiddenField(t, page, "request")

	resp, _ = b.post("/identity/oidc/authorize", url.Values{
		"csrf_token": {csrf},
		"request":    {request + "x"},
		"action":     {"grant"},
		"scope":      {"openid"},
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = b.post("/identity/oidc/authorize", url.Values{
		"csrf_token": {"forged"},
		"request":    {request},
		"action":     {"grant"},
		"scope":      {"openid"},
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Another browser cannot replay the consent form.
	other := newBrowser(t, srv)
	other.signIn(aliceUsername, alicePassword)
	resp, _ = other.post("/identity/oidc/authorize", url.Values{
		"csrf_token": {csrf},
		"request":    {request},
		"action":     {"grant"},
		"scope":      {"openid"},
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestConsent_ScopeNotRequested(t *testing.T) {
	srv := setupIdP(t)
	b := newBrowser(t, srv)
	conf := webConfig(srv, "openid")

	resp, _ := b.get(conf.AuthCodeURL("st"))
	next := b.login(resp.Header.Get("Location"), aliceUsername, alicePassword)
	_, page := b.get(next)

	resp, _ = b.post("/identity/oidc/authorize", url.Values{
		"csrf_token": {hiddenField(t, page, "csrf_token")},
		"request":    {hiddenField(t, page, "request")},
		"action":     {"grant"},
		"scope":      {"openid", "email"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	cb := callbackParams(t, resp.Header.Get("Location"), webRedirectURI)
	require.Equal(t, "invalid_scope", cb.Get("error"))
}
