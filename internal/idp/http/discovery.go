package http

import (
	"net/http"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// DiscoveryHandler godoc
//
//	@Summary		OpenID Provider metadata
//	@Description	Returns the OpenID Connect discovery document. Endpoint URLs are built from the issuer.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.DiscoveryDocument	"Provider metadata"
//	@Router			/.well-known/openid-configuration [get]
func DiscoveryHandler(clients *service.ClientRegistry, issuer IssuerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responseTypes, err := clients.ResponseTypesSupported(r.Context())
		if err != nil {
			slogx.FromContext(r.Context()).Error("failed to list response types", "err", err)
			authsdk.ErrServerError.WriteError(w)
			return
		}

		iss := issuer(r)
		httpx.WriteJSON(w, http.StatusOK, authsdk.DiscoveryDocument{
			Issuer:                           iss,
			AuthorizationEndpoint:            iss + pathAuthorize,
			TokenEndpoint:                    iss + pathToken,
			UserInfoEndpoint:                 iss + pathUserInfo,
			JWKSURI:                          iss + pathJWKS,
			RevocationEndpoint:               iss + pathRevoke,
			DeviceAuthorizationEndpoint:      iss + pathDeviceAuth,
			EndSessionEndpoint:               iss + pathLogout,
			ResponseTypesSupported:           responseTypes,
			SubjectTypesSupported:            []string{"public"},
			IDTokenSigningAlgValuesSupported: []string{jwtx.AlgorithmRS256},
			GrantTypesSupported: []string{
				domain.GrantTypeAuthorizationCode,
				domain.GrantTypeRefreshToken,
				domain.GrantTypeClientCredentials,
				domain.GrantTypeDeviceCode,
			},
			ScopesSupported: []string{service.ScopeOpenID, service.ScopeEmail, service.ScopeProfile},
			ClaimsSupported: []string{
				"sub", "iss", "aud", "exp", "iat", "auth_time", "nonce", "amr", "at_hash",
				"email", "email_verified", "name", "preferred_username",
			},
			CodeChallengeMethodsSupported:     []string{service.PKCEMethodS256, service.PKCEMethodPlain},
			TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
		})
	}
}

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify ID tokens and JWT access tokens.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKS	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get]
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	}
}
