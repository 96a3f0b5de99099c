package http

import (
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// LogoutHandler serves RP-initiated logout at /identity/oidc/logout.
type LogoutHandler struct {
	Grants   *service.GrantServer
	Sessions *SessionStore
}

var logoutFields = []string{
	"id_token_hint", "logout_hint", "client_id",
	"post_logout_redirect_uri", "state", "ui_locales",
}

func logoutParams(v url.Values) service.LogoutParams {
	return service.LogoutParams{
		IDTokenHint:           v.Get("id_token_hint"),
		LogoutHint:            v.Get("logout_hint"),
		ClientID:              v.Get("client_id"),
		PostLogoutRedirectURI: v.Get("post_logout_redirect_uri"),
		State:                 v.Get("state"),
		UILocales:             v.Get("ui_locales"),
	}
}

// ServeHTTP godoc
//
//	@Summary		RP-initiated logout
//	@Description	Ends the browser session and revokes the tokens the client holds for the user.
//	@Description	When confirmation is enabled, GET shows a confirm page and the form POST signs out.
//	@Description	The browser is sent to post_logout_redirect_uri only when it is registered for the client, and to / otherwise.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		html
//	@Param			id_token_hint				query		string	false	"ID token previously issued to the client"
//	@Param			logout_hint					query		string	false	"Hint about the user logging out"
//	@Param			client_id					query		string	false	"Client identifier"
//	@Param			post_logout_redirect_uri	query		string	false	"Where to send the browser afterwards"
//	@Param			state						query		string	false	"Opaque value passed back to the client"
//	@Param			ui_locales					query		string	false	"Preferred languages"
//	@Success		200							{string}	string	"HTML confirm page"
//	@Success		303							{string}	string	"Redirect to post_logout_redirect_uri or /"
//	@Failure		403							{string}	string	"CSRF token mismatch"
//	@Router			/identity/oidc/logout [get]
//	@Router			/identity/oidc/logout [post]
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid_request", "the form body could not be parsed")
		return
	}
	params := logoutParams(r.Form)
	sess, _ := h.Sessions.Load(r)

	if h.Grants.Settings.LogoutConfirm && sess.Authenticated() {
		if r.Method != http.MethodPost {
			h.confirm(w, r, params, sess.CSRF)
			return
		}
		if !validCSRF(sess, r.PostForm.Get("csrf_token")) {
			renderError(w, r, http.StatusForbidden, "access_denied", "the form has expired, go back and try again")
			return
		}
	}

	res, err := h.Grants.Logout(ctx, sess, params)
	if err != nil {
		log.Error("logout failed", "err", err)
		renderError(w, r, http.StatusInternalServerError, "server_error", "")
		return
	}
	if err := h.Sessions.End(w, r); err != nil {
		log.Error("failed to end session", "err", err)
	}
	if sess.Authenticated() {
		log.Info("user signed out", "user_id", sess.UserID, "tokens_revoked", res.Revoked)
	}

	http.Redirect(w, r, res.RedirectURI, http.StatusSeeOther)
}

func (h *LogoutHandler) confirm(w http.ResponseWriter, r *http.Request, params service.LogoutParams, csrf string) {
	page := logoutPage{
		Action: pathLogout,
		CSRF:   csrf,
		Params: map[string]string{},
	}
	for _, k := range logoutFields {
		if v := r.Form.Get(k); v != "" {
			page.Params[k] = v
		}
	}

	res, err := h.Grants.ResolveLogout(r.Context(), params)
	if err == nil && res.Client != nil {
		page.ClientName = clientName(res.Client)
	}
	render(w, r, http.StatusOK, "logout", page)
}
