package authsdk

import "github.com/aussiebroadwan/idp/pkg/jwtx"

// ErrorResponse is the OAuth2 error body (RFC 6749 section 5.2).
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenResponse is the token endpoint success body.
type TokenResponse struct {
	// AccessToken is opaque or a JWT depending on server configuration.
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited list of granted scopes.
	Scope string `json:"scope,omitempty"`

	// RefreshToken is present when the client may use the refresh_token grant.
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is present when the openid scope was granted.
	IDToken string `json:"id_token,omitempty"`
}

// DeviceAuthorizationResponse is the RFC 8628 section 3.2 body.
type DeviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval,omitempty"`
}

// UserInfoResponse is the OIDC UserInfo body. Only claims released by the
// granted scopes are set.
type UserInfoResponse struct {
	Sub               string `json:"sub"`
	Email             string `json:"email,omitempty"`
	EmailVerified     *bool  `json:"email_verified,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// DiscoveryDocument is the OpenID Provider Metadata document.
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	DeviceAuthorizationEndpoint       string   `json:"device_authorization_endpoint"`
	EndSessionEndpoint                string   `json:"end_session_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ClaimsSupported                   []string `json:"claims_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// JWKS is re-exported so clients do not need to import jwtx directly.
type JWKS = jwtx.JWKS

// HealthResponse is the body of /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency checked by /readyz.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
	Cache    string `json:"cache"`
}

// CreateClientRequest is the body of the client registration endpoint.
type CreateClientRequest struct {
	// ID is optional; a ULID is generated when empty.
	ID   string `json:"client_id,omitempty"`
	Name string `json:"name"`

	// Type is "public" or "confidential".
	Type string `json:"type"`

	// Secret is optional for confidential clients. When empty one is
	// generated and returned once.
	Secret string `json:"client_secret,omitempty"`

	Scopes            []string `json:"scopes"`
	DefaultScopes     []string `json:"default_scopes,omitempty"`
	GrantTypes        []string `json:"grant_types"`
	ResponseTypes     []string `json:"response_types,omitempty"`
	RedirectURIs      []string `json:"redirect_uris,omitempty"`
	CORSOrigins       []string `json:"cors_origins,omitempty"`
	AllowURIWildcards bool     `json:"allow_uri_wildcards,omitempty"`
	SkipConsent       bool     `json:"skip_consent,omitempty"`
}

// CreateClientResponse carries the new client id and, for confidential
// clients, the plaintext secret. The secret is never shown again.
type CreateClientResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// ClientInfo describes a registered client. Secrets are never returned.
type ClientInfo struct {
	ID           string   `json:"client_id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Scopes       []string `json:"scopes"`
	GrantTypes   []string `json:"grant_types"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	HasSecret    bool     `json:"has_secret"`
	SkipConsent  bool     `json:"skip_consent"`
	CreatedAt    string   `json:"created_at"`
}

type ListClientsResponse struct {
	Clients []ClientInfo `json:"clients"`
}
