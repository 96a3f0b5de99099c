package http

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// AuthorizeHandler processes OpenID Connect authorization requests
// (authorization code and implicit flows) and the consent form they lead to.
type AuthorizeHandler struct {
	Grants   *service.GrantServer
	Users    *service.UserService
	Sessions *SessionStore
	Consent  *service.ConsentSigner
	Issuer   IssuerFunc
}

func authorizationParams(v url.Values, issuer string) service.AuthorizationParams {
	return service.AuthorizationParams{
		ClientID:            v.Get("client_id"),
		RedirectURI:         v.Get("redirect_uri"),
		ResponseType:        v.Get("response_type"),
		Scope:               v.Get("scope"),
		State:               v.Get("state"),
		Nonce:               v.Get("nonce"),
		CodeChallenge:       v.Get("code_challenge"),
		CodeChallengeMethod: v.Get("code_challenge_method"),
		Prompt:              v.Get("prompt"),
		IDTokenHint:         v.Get("id_token_hint"),
		Claims:              v.Get("claims"),
		Issuer:              issuer,
	}
}

// HandleGet processes GET requests to the authorization endpoint.
//
//	@Summary		OpenID Connect authorization endpoint (GET)
//	@Description	Starts the authorization code flow, or the implicit flow for clients registered for
//	@Description	the token or "id_token token" response types. Signed-out users are sent to the sign-in page first.
//	@Description	Signed-in users see the consent page, unless the client skips consent.
//	@Description
//	@Description	**PKCE Support:**
//	@Description	- Public clients MUST include code_challenge (defaults to S256 if method omitted)
//	@Description	- Confidential clients MAY include code_challenge for additional security
//	@Description
//	@Description	**Response:**
//	@Description	- Success: 302 redirect to redirect_uri with code and state parameters
//	@Description	- Implicit success: 302 redirect with access_token, token_type, expires_in, scope, state and id_token in the fragment
//	@Description	- Unknown client or redirect_uri: HTML error page
//	@Description	- Other errors: 302 redirect to redirect_uri with error and state parameters
//	@Tags			OAuth2
//	@Produce		html
//	@Param			response_type			query		string	true	"Response type"	default(code)	Enums(code, token, id_token token)
//	@Param			client_id				query		string	true	"OAuth2 client identifier"
//	@Param			redirect_uri			query		string	false	"Callback URI (required unless the client has exactly one)"
//	@Param			scope					query		string	false	"Space-delimited list of scopes"	example("openid email profile")
//	@Param			state					query		string	false	"Opaque value for CSRF protection (recommended)"
//	@Param			nonce					query		string	false	"Value echoed in the ID token"
//	@Param			prompt					query		string	false	"Space-delimited prompts"	Enums(none, login, consent)
//	@Param			id_token_hint			query		string	false	"Previously issued ID token"
//	@Param			code_challenge			query		string	false	"PKCE code challenge (required for public clients)"	example("E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM")
//	@Param			code_challenge_method	query		string	false	"PKCE method (S256 or plain, defaults to S256)"		default(S256)	Enums(S256, plain)
//	@Success		200						{string}	string	"HTML consent page"
//	@Success		302						{string}	string	"Redirect to redirect_uri or the sign-in page"
//	@Failure		400						{string}	string	"HTML error page"
//	@Router			/identity/oidc/authorize [get]
func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.authorize(w, r, r.URL.Query())
}

// HandlePost processes the authorization request sent as a form, and the
// consent form submission.
//
//	@Summary		OpenID Connect authorization endpoint (POST)
//	@Description	Accepts the authorization request as a form body, with the same parameters as GET.
//	@Description	A body carrying the signed request field is a consent form submission instead.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		html
//	@Param			request		formData	string	false	"Signed pending authorization from the consent page"
//	@Param			csrf_token	formData	string	false	"CSRF token from the consent page"
//	@Param			action		formData	string	false	"Consent decision"	Enums(grant, deny)
//	@Param			scope		formData	string	false	"Approved scopes, one field per scope"
//	@Param			email		formData	string	false	"Email address to share"
//	@Success		303			{string}	string	"Redirect to redirect_uri or the sign-in page"
//	@Failure		400			{string}	string	"HTML error page"
//	@Failure		403			{string}	string	"CSRF token or signed request rejected"
//	@Router			/identity/oidc/authorize [post]
func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if !formContentType(r) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	if r.PostForm.Has("request") {
		h.consent(w, r)
		return
	}
	h.authorize(w, r, r.Form)
}

func (h *AuthorizeHandler) authorize(w http.ResponseWriter, r *http.Request, params url.Values) {
	ctx := r.Context()
	call := service.NewCall()

	areq, err := h.Grants.ValidateAuthorizationRequest(ctx, call, authorizationParams(params, h.Issuer(r)))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sess, _ := h.Sessions.Load(r)

	if areq.HasPrompt(service.PromptNone) {
		loc, err := h.Grants.SilentAuthorization(ctx, call, areq, sess)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		redirect(w, r, loc)
		return
	}

	if areq.HasPrompt(service.PromptLogin) {
		if err := h.Sessions.End(w, r); err != nil {
			slogx.FromContext(ctx).Error("failed to end session", "err", err)
		}
		redirect(w, r, loginRedirect(authorizeURL(withoutPrompt(params, service.PromptLogin))))
		return
	}

	user, ok := h.sessionUser(w, r, sess)
	if !ok {
		redirect(w, r, loginRedirect(authorizeURL(params)))
		return
	}

	if areq.Client.SkipConsent && !areq.HasPrompt(service.PromptConsent) {
		loc, err := h.Grants.CreateAuthorization(ctx, areq, user, sess, areq.Scopes, "")
		if err != nil {
			h.failRedirect(w, r, areq, err)
			return
		}
		redirect(w, r, loc)
		return
	}

	token, err := h.Consent.Sign(service.NewPendingAuthorization(areq, sess.ID))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page := consentPage{
		Action:     pathAuthorize,
		CSRF:       sess.CSRF,
		Request:    token,
		ClientName: clientName(areq.Client),
		Username:   user.Username,
		Scopes:     areq.Scopes,
	}
	if slices.Contains(areq.Scopes, service.ScopeEmail) && user.Email != "" {
		page.Emails = []string{user.Email}
	}
	render(w, r, http.StatusOK, "consent", page)
}

func (h *AuthorizeHandler) consent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	sess, _ := h.Sessions.Load(r)
	if !validCSRF(sess, r.PostForm.Get("csrf_token")) {
		log.Warn("consent rejected: csrf token mismatch")
		renderError(w, r, http.StatusForbidden, "access_denied", "the form has expired, go back and try again")
		return
	}

	pending, err := h.Consent.Verify(r.PostForm.Get("request"), sess.ID)
	if err != nil {
		log.Warn("consent rejected: invalid request token")
		renderError(w, r, http.StatusForbidden, "access_denied", "the authorization request could not be verified")
		return
	}

	if r.PostForm.Get("action") == "deny" {
		log.Info("consent denied", "client_id", pending.ClientID)
		redirect(w, r, pending.DenyLocation())
		return
	}

	areq, err := h.Grants.Resume(ctx, service.NewCall(), pending)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, ok := h.sessionUser(w, r, sess)
	if !ok {
		renderError(w, r, http.StatusForbidden, "login_required", "your session has ended, sign in and try again")
		return
	}

	loc, err := h.Grants.CreateAuthorization(ctx, areq, user, sess, r.PostForm["scope"], r.PostForm.Get("email"))
	if err != nil {
		h.failRedirect(w, r, areq, err)
		return
	}
	redirect(w, r, loc)
}

// sessionUser returns the signed-in user. Sessions of deleted or disabled
// users are ended.
func (h *AuthorizeHandler) sessionUser(w http.ResponseWriter, r *http.Request, sess *domain.Session) (*domain.User, bool) {
	if !sess.Authenticated() {
		return nil, false
	}

	user, err := h.Users.GetUserByID(r.Context(), sess.UserID)
	if err == nil && user.Active {
		return &user, true
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(r.Context()).Error("failed to load session user", "err", err)
	}
	if err := h.Sessions.End(w, r); err != nil {
		slogx.FromContext(r.Context()).Error("failed to end session", "err", err)
	}
	return nil, false
}

// fail reports a validation error. Errors that cannot be trusted to the
// redirect URI are shown as a page.
func (h *AuthorizeHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var aerr *service.AuthorizationError
	if errors.As(err, &aerr) {
		if aerr.Fatal {
			renderError(w, r, http.StatusBadRequest, service.ErrorCode(aerr.Err), aerr.Description)
			return
		}
		redirect(w, r, aerr.Location())
		return
	}

	slogx.FromContext(r.Context()).Error("authorization failed", "err", err)
	renderError(w, r, http.StatusInternalServerError, "server_error", "")
}

// failRedirect sends a protocol error from code creation back to the client.
func (h *AuthorizeHandler) failRedirect(w http.ResponseWriter, r *http.Request, areq *service.AuthorizationRequest, err error) {
	if toOAuth2Error(err) == nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, areq.ErrorLocation(err, service.Description(err)))
}

func clientName(c *domain.Client) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

func authorizeURL(params url.Values) string {
	return pathAuthorize + "?" + params.Encode()
}

// withoutPrompt returns a copy of params with one prompt value removed.
func withoutPrompt(params url.Values, prompt string) url.Values {
	out := url.Values{}
	for k, v := range params {
		out[k] = slices.Clone(v)
	}

	remaining := slices.DeleteFunc(strings.Fields(params.Get("prompt")), func(p string) bool {
		return p == prompt
	})
	if len(remaining) == 0 {
		out.Del("prompt")
	} else {
		out.Set("prompt", strings.Join(remaining, " "))
	}
	return out
}

// redirect answers GET requests with 302 and form posts with 303 so the
// browser follows with a GET.
func redirect(w http.ResponseWriter, r *http.Request, location string) {
	status := http.StatusFound
	if r.Method == http.MethodPost {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, location, status)
}
