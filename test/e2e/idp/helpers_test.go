package idp_test

import (
	"context"
	"encoding/hex"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/app"
	"github.com/aussiebroadwan/idp/internal/idp/cache"
	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

/*
 * Common constants and helpers for the identity provider end-to-end tests.
 * Each test boots the full application in process, seeded from a YAML file,
 * and drives it through a browser with a cookie jar and x/oauth2 clients.
 */

const (
	webClientID     = "web"
	webClientSecret = "web-secret"
	webRedirectURI  = "https://app.example.com/cb"

	spaClientID    = "spa"
	spaRedirectURI = "https://spa.example.com/cb"

	tvClientID = "tv"

	jsClientID    = "js"
	jsRedirectURI = "https://js.example.com/cb"

	svcClientID     = "svc"
	svcClientSecret = "svc-secret"

	aliceUsername = "alice"
	alicePassword = "correct horse battery staple"
	aliceEmail    = "alice@example.com"
)

const seedYAML = `
clients:
  - id: web
    name: Web App
    type: confidential
    secret: web-secret
    scopes: [openid, profile, email, offline_access]
    grant_types: [authorization_code, refresh_token]
    redirect_uris: [https://app.example.com/cb]
  - id: spa
    name: Single Page App
    type: public
    scopes: [openid, profile]
    grant_types: [authorization_code]
    redirect_uris: [https://spa.example.com/cb]
    cors_origins: [https://spa.example.com]
    skip_consent: true
  - id: tv
    name: Living Room TV
    type: public
    scopes: [openid, profile]
    grant_types: ["urn:ietf:params:oauth:grant-type:device_code", refresh_token]
  - id: js
    name: Browser Widget
    type: public
    scopes: [openid, profile, email]
    response_types: [token, "id_token token"]
    redirect_uris: [https://js.example.com/cb]
  - id: svc
    name: Provisioner
    type: confidential
    secret: svc-secret
    scopes: [idp:admin]
    grant_types: [client_credentials]
users:
  - username: alice
    name: Alice Example
    email: alice@example.com
    email_verified: true
    password: correct horse battery staple
`

// testConfig returns a configuration rooted in a temporary directory.
func testConfig(t *testing.T) app.Config {
	t.Helper()
	dir := t.TempDir()

	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0o600))

	return app.Config{
		DatabaseFile:         filepath.Join(dir, "idp.db"),
		PepperFile:           filepath.Join(dir, "pepper"),
		SeedFile:             seed,
		CookieSecret:         hex.EncodeToString([]byte(strings.Repeat("s", 32))),
		SessionTTL:           time.Hour,
		ClientCacheTTL:       time.Minute,
		RotateRefreshToken:   true,
		DeviceCodeInterval:   time.Second,
		LogoutConfirm:        true,
		Cache:                cache.Config{Driver: cache.DriverMemory},
		Env:                  "test",
		LogLevel:             "error",
		LogFormat:            "json",
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	}
}

// setupIdP boots the application behind an httptest server and returns the
// server. The issuer is derived from the request, so it is the server URL.
func setupIdP(t *testing.T, mutate ...func(*app.Config)) *httptest.Server {
	t.Helper()

	cfg := testConfig(t)
	for _, m := range mutate {
		m(&cfg)
	}

	a, err := app.New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close()
	})
	return srv
}

// browser is a user agent with a cookie jar that does not follow redirects,
// so each hop can be inspected.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, srv *httptest.Server) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &browser{
		t:    t,
		base: srv.URL,
		client: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return b.base + path
}

// get fetches path and returns the response with its body read.
func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.url(path))
	require.NoError(b.t, err)
	return resp, readBody(b.t, resp)
}

// post submits form to path as a browser form post.
func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.PostForm(b.url(path), form)
	require.NoError(b.t, err)
	return resp, readBody(b.t, resp)
}

// login signs in through the login page, starting from the redirect the
// IdP sent. It returns where the login page sends the browser next.
func (b *browser) login(loginLocation, username, password string) string {
	b.t.Helper()

	resp, page := b.get(loginLocation)
	require.Equal(b.t, http.StatusOK, resp.StatusCode)

	resp, _ = b.post("/identity/login", url.Values{
		"csrf_token": {hiddenField(b.t, page, "csrf_token")},
		"next":       {hiddenField(b.t, page, "next")},
		"username":   {username},
		"password":   {password},
	})
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
	return resp.Header.Get("Location")
}

// signIn logs in directly, without an authorization request.
func (b *browser) signIn(username, password string) {
	b.t.Helper()
	require.Equal(b.t, "/", b.login("/identity/login", username, password))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

var hiddenFieldRe = regexp.MustCompile(`<input type="hidden" name="([^"]+)" value="([^"]*)">`)

// hiddenField extracts a hidden form field from a rendered page.
func hiddenField(t *testing.T, page, name string) string {
	t.Helper()
	for _, m := range hiddenFieldRe.FindAllStringSubmatch(page, -1) {
		if m[1] == name {
			return html.UnescapeString(m[2])
		}
	}
	t.Fatalf("hidden field %q not found in page", name)
	return ""
}

// webConfig is the x/oauth2 configuration of the confidential web client.
func webConfig(srv *httptest.Server, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     webClientID,
		ClientSecret: webClientSecret,
		RedirectURL:  webRedirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/identity/oidc/authorize",
			TokenURL:  srv.URL + "/identity/oidc/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// publicConfig is the x/oauth2 configuration of a public client.
func publicConfig(srv *httptest.Server, clientID, redirectURI string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       srv.URL + "/identity/oidc/authorize",
			TokenURL:      srv.URL + "/identity/oidc/token",
			DeviceAuthURL: srv.URL + "/identity/oidc/device/authorize",
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

// oauthContext makes x/oauth2 use the test server's client.
func oauthContext(t *testing.T, srv *httptest.Server) context.Context {
	return context.WithValue(t.Context(), oauth2.HTTPClient, srv.Client())
}

// callbackParams parses the query of a redirect to a client callback.
func callbackParams(t *testing.T, location, redirectURI string) url.Values {
	t.Helper()
	require.True(t, strings.HasPrefix(location, redirectURI+"?"), "unexpected redirect %q", location)
	u, err := url.Parse(location)
	require.NoError(t, err)
	return u.Query()
}

// fragmentParams parses the fragment of a redirect to a client callback.
func fragmentParams(t *testing.T, location, redirectURI string) url.Values {
	t.Helper()
	require.True(t, strings.HasPrefix(location, redirectURI+"#"), "unexpected redirect %q", location)
	u, err := url.Parse(location)
	require.NoError(t, err)
	params, err := url.ParseQuery(u.EscapedFragment())
	require.NoError(t, err)
	return params
}

// authorizeWithConsent runs the browser side of the code flow for the web
// client: sign in, approve the consent page and return the callback query.
func authorizeWithConsent(t *testing.T, b *browser, authURL string, approve url.Values) url.Values {
	t.Helper()

	resp, _ := b.get(authURL)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	next := b.login(resp.Header.Get("Location"), aliceUsername, alicePassword)

	resp, page := b.get(next)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, page, "Web App")

	form := url.Values{
		"csrf_token": {hiddenField(t, page, "csrf_token")},
		"request":    {hiddenField(t, page, "request")},
		"action":     {"grant"},
	}
	for k, v := range approve {
		form[k] = v
	}

	resp, _ = b.post("/identity/oidc/authorize", form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	return callbackParams(t, resp.Header.Get("Location"), webRedirectURI)
}

// verifyIDToken checks an ID token against the published JWKS.
func verifyIDToken(t *testing.T, srv *httptest.Server, raw string, audience string) jwtx.Claims {
	t.Helper()

	sdk := authsdk.NewClient(srv.URL)
	doc, err := sdk.Discover(t.Context())
	require.NoError(t, err)
	set, err := sdk.JWKS(t.Context(), doc)
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	for _, k := range set.Keys {
		require.NoError(t, keys.AddJWK(k))
	}

	claims, err := jwtx.NewCommonRS256(keys, jwtx.VerifyOptions{
		Issuer:   srv.URL,
		Audience: []string{audience},
	}).Verify(raw)
	require.NoError(t, err)
	return claims
}

// assertOAuthError checks err is a token endpoint error with code.
func assertOAuthError(t *testing.T, err error, code string) {
	t.Helper()
	var rerr *oauth2.RetrieveError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, code, rerr.ErrorCode)
}
