package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// DeviceAuthorizeHandler serves POST /identity/oidc/device/authorize (RFC 8628
// section 3.1).
type DeviceAuthorizeHandler struct {
	Grants *service.GrantServer
	Issuer IssuerFunc
}

// ServeHTTP godoc
//
//	@Summary		Device Authorization Endpoint
//	@Description	Starts the device authorization grant (RFC 8628) for a public client.
//	@Description	The device shows user_code and verification_uri, then polls the token endpoint with device_code.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			client_id	formData	string									true	"Public client identifier"
//	@Param			scope		formData	string									false	"Space-delimited list of scopes"
//	@Success		200			{object}	authsdk.DeviceAuthorizationResponse		"device_code, user_code, verification_uri, expires_in, interval"
//	@Failure		400			{object}	authsdk.ErrorResponse					"error, error_description"
//	@Failure		401			{object}	authsdk.ErrorResponse					"error, error_description"
//	@Router			/identity/oidc/device/authorize [post]
func (h *DeviceAuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !formContentType(r) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	clientID, _, err := clientCredentials(r)
	if err != nil {
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}
	if clientID == "" {
		authsdk.ErrInvalidRequest.WithDescription("missing client_id").WriteError(w)
		return
	}

	auth, err := h.Grants.DeviceAuthorize(r.Context(), clientID,
		httpx.ParseSpaceDelimitedFields(r.PostForm.Get("scope")),
		h.Issuer(r)+pathDevice,
	)
	if err != nil {
		writeServiceError(w, r, err, "device authorization failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.DeviceAuthorizationResponse{
		DeviceCode:              auth.DeviceCode,
		UserCode:                auth.UserCode,
		VerificationURI:         auth.VerificationURI,
		VerificationURIComplete: auth.VerificationURIComplete,
		ExpiresIn:               auth.ExpiresIn,
		Interval:                auth.Interval,
	})
}

// DeviceHandler serves the verification page at /identity/oidc/device where
// a signed-in user enters the code shown on a device and confirms it.
type DeviceHandler struct {
	Grants   *service.GrantServer
	Users    *service.UserService
	Sessions *SessionStore

	limit   httpx.RateLimitConfig
	limiter *httpx.Limiter
}

// NewDeviceHandler creates the verification page handler. Every user code
// check counts against limit, keyed by client address.
func NewDeviceHandler(
	grants *service.GrantServer,
	users *service.UserService,
	sessions *SessionStore,
	limit httpx.RateLimitConfig,
) *DeviceHandler {
	return &DeviceHandler{
		Grants:   grants,
		Users:    users,
		Sessions: sessions,
		limit:    limit,
		limiter:  httpx.NewLimiter(limit),
	}
}

// HandleGet shows the code entry form, or the confirmation step when the
// code is given in the query.
//
//	@Summary		Device verification page
//	@Description	Shows the user code entry form. With ?code= the code is checked and the confirm/deny step is shown.
//	@Tags			OAuth2
//	@Produce		html
//	@Param			code	query		string	false	"User code shown on the device"
//	@Success		200		{string}	string	"HTML page"
//	@Success		302		{string}	string	"Redirect to the sign-in page"
//	@Failure		429		{object}	map[string]string	"Too many code checks"
//	@Router			/identity/oidc/device [get]
func (h *DeviceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.signedIn(w, r)
	if !ok {
		return
	}

	page := devicePage{Action: pathDevice, CSRF: sess.CSRF, Code: r.URL.Query().Get("code")}
	if page.Code == "" {
		render(w, r, http.StatusOK, "device", page)
		return
	}
	h.check(w, r, page)
}

// HandlePost checks a submitted code, or records the user's decision.
//
//	@Summary		Device verification
//	@Description	With only code, checks it and shows the confirm/deny step.
//	@Description	With action=confirm or action=deny, records the decision for the device.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		html
//	@Param			csrf_token	formData	string	true	"CSRF token from the form"
//	@Param			code		formData	string	true	"User code shown on the device"
//	@Param			action		formData	string	false	"Decision"	Enums(confirm, deny)
//	@Success		200			{string}	string	"HTML page"
//	@Failure		400			{string}	string	"HTML page with an incorrect code error"
//	@Failure		403			{string}	string	"CSRF token mismatch"
//	@Failure		429			{object}	map[string]string	"Too many code checks"
//	@Router			/identity/oidc/device [post]
func (h *DeviceHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid_request", "the form body could not be parsed")
		return
	}

	sess, user, ok := h.signedIn(w, r)
	if !ok {
		return
	}
	if !validCSRF(sess, r.PostForm.Get("csrf_token")) {
		renderError(w, r, http.StatusForbidden, "access_denied", "the form has expired, go back and try again")
		return
	}

	page := devicePage{Action: pathDevice, CSRF: sess.CSRF, Code: r.PostForm.Get("code")}

	action := r.PostForm.Get("action")
	if action != "confirm" && action != "deny" {
		h.check(w, r, page)
		return
	}

	deviceCode, _, ok := h.validate(w, r, page)
	if !ok {
		return
	}

	confirm := action == "confirm"
	decided, err := h.Grants.Devices.ConfirmOrDeny(r.Context(), user, deviceCode, confirm)
	if err != nil {
		slogx.FromContext(r.Context()).Error("device decision failed", "err", err)
		renderError(w, r, http.StatusInternalServerError, "server_error", "")
		return
	}
	if !decided {
		page.Error = "That code is not valid. Check the code on your device and try again."
		render(w, r, http.StatusBadRequest, "device", page)
		return
	}

	slogx.FromContext(r.Context()).Info("device decision recorded", "user_id", user.ID, "confirmed", confirm)
	page.Done = true
	page.Confirmed = confirm
	render(w, r, http.StatusOK, "device", page)
}

// check validates the code and renders the confirm step.
func (h *DeviceHandler) check(w http.ResponseWriter, r *http.Request, page devicePage) {
	_, client, ok := h.validate(w, r, page)
	if !ok {
		return
	}
	page.ClientName = clientName(client)
	render(w, r, http.StatusOK, "device", page)
}

// validate resolves the user code under the rate limit. On failure the
// response has been written.
func (h *DeviceHandler) validate(w http.ResponseWriter, r *http.Request, page devicePage) (string, *domain.Client, bool) {
	if ok, delay := h.limiter.Allow(httpx.GetRemoteIP(r)); !ok {
		slogx.FromContext(r.Context()).Warn("device code checks rate limited", "remote_ip", httpx.GetRemoteIP(r))
		httpx.WriteRateLimited(w, h.limit, delay)
		return "", nil, false
	}

	deviceCode, client, err := h.Grants.Devices.ValidateUserCode(r.Context(), page.Code)
	if errors.Is(err, service.ErrIncorrectCode) {
		page.Error = "That code is not valid. Check the code on your device and try again."
		render(w, r, http.StatusBadRequest, "device", page)
		return "", nil, false
	}
	if err != nil {
		slogx.FromContext(r.Context()).Error("device code check failed", "err", err)
		renderError(w, r, http.StatusInternalServerError, "server_error", "")
		return "", nil, false
	}
	return deviceCode, client, true
}

// signedIn returns the session and user, or redirects to the sign-in page
// and returns false.
func (h *DeviceHandler) signedIn(w http.ResponseWriter, r *http.Request) (*domain.Session, *domain.User, bool) {
	sess, _ := h.Sessions.Load(r)
	if sess.Authenticated() {
		user, err := h.Users.GetUserByID(r.Context(), sess.UserID)
		if err == nil && user.Active {
			return sess, &user, true
		}
	}

	next := pathDevice
	if code := r.FormValue("code"); code != "" {
		next += "?" + url.Values{"code": {code}}.Encode()
	}
	http.Redirect(w, r, loginRedirect(next), http.StatusSeeOther)
	return nil, nil, false
}
