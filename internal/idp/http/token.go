package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/aussiebroadwan/idp/pkg/httpx"
)

// TokenHandler serves POST /identity/oidc/token.
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	Grants *service.GrantServer
	Issuer IssuerFunc
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues tokens for the authorization_code, refresh_token, client_credentials and device_code grants.
//	@Description	Client credentials are accepted as HTTP Basic or as form fields. The password grant is disabled.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(authorization_code, refresh_token, client_credentials, urn:ietf:params:oauth:grant-type:device_code)
//	@Param			code			formData	string					false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI, when it was sent to the authorization endpoint"
//	@Param			code_verifier	formData	string					false	"PKCE code_verifier (required when PKCE was used)"
//	@Param			refresh_token	formData	string					false	"Refresh token (refresh_token grant)"
//	@Param			device_code		formData	string					false	"Device code (device_code grant)"
//	@Param			client_id		formData	string					false	"Client identifier, unless sent with HTTP Basic"
//	@Param			client_secret	formData	string					false	"Client secret for confidential clients, unless sent with HTTP Basic"
//	@Param			scope			formData	string					false	"Space-delimited list of scopes"
//	@Success		200				{object}	authsdk.TokenResponse	"access_token, token_type, expires_in, scope, refresh_token, id_token"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/identity/oidc/token [post]
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !formContentType(r) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}
	form := r.PostForm

	clientID, clientSecret, err := clientCredentials(r)
	if err != nil {
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	tokens, err := h.Grants.Token(r.Context(), service.TokenParams{
		GrantType:    form.Get("grant_type"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Code:         form.Get("code"),
		RedirectURI:  form.Get("redirect_uri"),
		CodeVerifier: form.Get("code_verifier"),
		RefreshToken: form.Get("refresh_token"),
		DeviceCode:   form.Get("device_code"),
		Username:     form.Get("username"),
		Password:     form.Get("password"),
		Scopes:       httpx.ParseSpaceDelimitedFields(form.Get("scope")),
		Issuer:       h.Issuer(r),
	})
	if err != nil {
		writeServiceError(w, r, err, "token request failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(tokens))
}

func tokenResponse(t *domain.IssuedTokens) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(t.ExpiresIn.Seconds()),
		Scope:        strings.Join(t.Scopes, " "),
		RefreshToken: t.RefreshToken,
		IDToken:      t.IDToken,
	}
}

var (
	errMalformedBasic   = errors.New("malformed basic credentials")
	errMultipleAuth     = errors.New("multiple client authentication methods")
	errClientIDMismatch = errors.New("client_id does not match the authenticated client")
)

// clientCredentials reads client_secret_basic or client_secret_post
// credentials. Using both at once, or two different client ids, is rejected.
func clientCredentials(r *http.Request) (string, string, error) {
	formID := r.PostForm.Get("client_id")
	formSecret := r.PostForm.Get("client_secret")

	user, pass, ok := r.BasicAuth()
	if !ok {
		return formID, formSecret, nil
	}

	// RFC 6749 section 2.3.1 form-encodes both parts before base64.
	id, err := url.QueryUnescape(user)
	if err != nil {
		return "", "", errMalformedBasic
	}
	secret, err := url.QueryUnescape(pass)
	if err != nil {
		return "", "", errMalformedBasic
	}
	if formSecret != "" {
		return "", "", errMultipleAuth
	}
	if formID != "" && formID != id {
		return "", "", errClientIDMismatch
	}
	return id, secret, nil
}

func formContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/x-www-form-urlencoded")
}

// clientOriginPolicy accepts an origin registered by the calling client, or
// by any client when the request does not name one, as in a preflight.
func clientOriginPolicy(grants *service.GrantServer) httpx.OriginPolicy {
	return func(r *http.Request, origin string) bool {
		if clientID := httpx.ClientIDKeyExtractor(r); clientID != "" {
			return grants.Validator.ValidateOrigin(r.Context(), service.NewCall(), clientID, origin)
		}
		return grants.Clients.OriginAllowed(r.Context(), origin)
	}
}
