package http

import (
	"net/http"

	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/httpx"
)

type UserInfoHandler struct {
	Grants *service.GrantServer
}

// ServeHTTP handles the OpenID Connect UserInfo endpoint.
//
//	@Summary		Get user information
//	@Description	Returns the claims released by the scopes of the access token. Requires the 'openid' scope.
//	@Description	Tokens passed in the query string are rejected.
//	@Tags			OAuth2
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserInfoResponse	"sub, email, email_verified, name, preferred_username"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		403	{object}	authsdk.ErrorResponse		"Insufficient scope"
//	@Router			/identity/oidc/userinfo [get]
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, _ := httpx.BearerToken(r)
	bearer := service.BearerRequest{
		Token:   token,
		InQuery: httpx.HasQueryAccessToken(r),
	}

	info, err := h.Grants.UserInfo(r.Context(), bearer)
	if err != nil {
		writeBearerError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, info)
}
