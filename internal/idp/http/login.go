package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// LoginHandler serves the sign-in page at /identity/login.
type LoginHandler struct {
	Users    *service.UserService
	Sessions *SessionStore
	Now      func() time.Time
}

func nextParam(r *http.Request) string {
	if next := r.FormValue("next"); localPath(next) {
		return next
	}
	return "/"
}

// HandleGet renders the sign-in form.
//
//	@Summary		Sign-in page
//	@Description	Renders the username and password form. After signing in the browser is sent to the local path in next.
//	@Tags			Login
//	@Produce		html
//	@Param			next	query		string	false	"Local path to continue to after signing in"
//	@Success		200		{string}	string	"HTML sign-in form"
//	@Router			/identity/login [get]
func (h *LoginHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, raw := h.Sessions.Load(r)
	if err := h.Sessions.Save(w, r, raw); err != nil {
		slogx.FromContext(r.Context()).Error("failed to save session", "err", err)
	}
	render(w, r, http.StatusOK, "login", loginPage{
		Action: pathLogin,
		CSRF:   sess.CSRF,
		Next:   nextParam(r),
	})
}

// HandlePost checks the submitted credentials and signs the user in.
//
//	@Summary		Sign in
//	@Description	Verifies the username, password and, for users with TOTP enabled, the authenticator code.
//	@Description	On success the session cookie is set and the browser is redirected to next.
//	@Tags			Login
//	@Accept			x-www-form-urlencoded
//	@Produce		html
//	@Param			csrf_token	formData	string	true	"CSRF token from the form"
//	@Param			username	formData	string	true	"Username"
//	@Param			password	formData	string	true	"Password"
//	@Param			otp			formData	string	false	"TOTP code"
//	@Param			next		formData	string	false	"Local path to continue to"
//	@Success		303			{string}	string	"Redirect to next"
//	@Failure		401			{string}	string	"HTML form with an error"
//	@Failure		403			{string}	string	"CSRF token mismatch"
//	@Failure		429			{string}	string	"Too many attempts"
//	@Router			/identity/login [post]
func (h *LoginHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid_request", "the form body could not be parsed")
		return
	}

	sess, _ := h.Sessions.Load(r)
	if !validCSRF(sess, r.PostForm.Get("csrf_token")) {
		renderError(w, r, http.StatusForbidden, "access_denied", "the form has expired, go back and try again")
		return
	}

	username := strings.TrimSpace(r.PostForm.Get("username"))
	page := loginPage{
		Action:   pathLogin,
		CSRF:     sess.CSRF,
		Next:     nextParam(r),
		Username: username,
	}

	user, amr, err := h.Users.Authenticate(ctx, username, r.PostForm.Get("password"), r.PostForm.Get("otp"))
	switch {
	case errors.Is(err, service.ErrOTPRequired):
		page.OTP = true
		page.Error = "Enter the code from your authenticator app."
		render(w, r, http.StatusOK, "login", page)
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		page.OTP = r.PostForm.Get("otp") != ""
		page.Error = "Invalid username or password."
		render(w, r, http.StatusUnauthorized, "login", page)
		return
	case err != nil:
		log.Error("login failed", "err", err)
		renderError(w, r, http.StatusInternalServerError, "server_error", "")
		return
	}

	if _, err := h.Sessions.Login(w, r, user, amr, h.now()); err != nil {
		log.Error("failed to save session", "err", err)
		renderError(w, r, http.StatusInternalServerError, "server_error", "")
		return
	}

	log.Info("user signed in", "user_id", user.ID, "amr", amr)
	http.Redirect(w, r, page.Next, http.StatusSeeOther)
}

func (h *LoginHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
