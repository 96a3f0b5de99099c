package http

import (
	"net/http"

	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// HomeHandler serves the landing page at /. Sign-in without a next path and
// logout without a registered redirect both end up here.
type HomeHandler struct {
	Users    *service.UserService
	Sessions *SessionStore
}

// ServeHTTP renders the landing page.
//
//	@Summary		Landing page
//	@Description	Shows who is signed in, with links to sign in or out.
//	@Tags			Login
//	@Produce		html
//	@Success		200	{string}	string	"HTML landing page"
//	@Router			/ [get]
func (h *HomeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.Sessions.Load(r)
	page := homePage{Login: pathLogin, Logout: pathLogout}

	if sess.Authenticated() {
		user, err := h.Users.GetUserByID(r.Context(), sess.UserID)
		if err != nil {
			slogx.FromContext(r.Context()).Warn("session user not found", "user_id", sess.UserID, "err", err)
		} else {
			page.Username = user.Username
		}
	}
	render(w, r, http.StatusOK, "home", page)
}
