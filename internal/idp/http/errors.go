package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

var oauthErrors = []struct {
	err  error
	wire *authsdk.OAuth2Error
}{
	{service.ErrInvalidRequest, authsdk.ErrInvalidRequest},
	{service.ErrInvalidClient, authsdk.ErrInvalidClient},
	{service.ErrInvalidGrant, authsdk.ErrInvalidGrant},
	{service.ErrInvalidScope, authsdk.ErrInvalidScope},
	{service.ErrUnauthorizedClient, authsdk.ErrUnauthorizedClient},
	{service.ErrUnsupportedGrantType, authsdk.ErrUnsupportedGrantType},
	{service.ErrUnsupportedResponseType, authsdk.ErrUnsupportedResponseType},
	{service.ErrAccessDenied, authsdk.ErrAccessDenied},
	{service.ErrLoginRequired, authsdk.ErrLoginRequired},
	{service.ErrInvalidToken, authsdk.ErrInvalidToken},
	{service.ErrInsufficientScope, authsdk.ErrInsufficientScope},
	{service.ErrAuthorizationPending, authsdk.ErrAuthorizationPending},
	{service.ErrSlowDown, authsdk.ErrSlowDown},
	{service.ErrExpiredToken, authsdk.ErrExpiredToken},
}

// toOAuth2Error maps a service error to its wire error. It returns nil for
// errors that are not protocol errors.
func toOAuth2Error(err error) *authsdk.OAuth2Error {
	for _, e := range oauthErrors {
		if !errors.Is(err, e.err) {
			continue
		}
		if desc := service.Description(err); desc != "" {
			return e.wire.WithDescription(desc)
		}
		return e.wire
	}
	return nil
}

// writeServiceError writes err as an OAuth2 JSON error. Anything that is not
// a protocol error is logged and reported as server_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if oe := toOAuth2Error(err); oe != nil {
		oe.WriteError(w)
		return
	}
	slogx.FromContext(r.Context()).Error(msg, "err", err)
	authsdk.ErrServerError.WriteError(w)
}

// writeBearerError answers a failed bearer token check per RFC 6750.
func writeBearerError(w http.ResponseWriter, r *http.Request, err error) {
	oe := toOAuth2Error(err)
	if oe == nil {
		slogx.FromContext(r.Context()).Error("bearer token validation failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	httpx.WriteBearerError(w, oe.StatusCode, oe.Code, oe.Description)
}
