package domain

import (
	"slices"
	"strings"
	"time"
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential"
	ClientTypePublic       ClientType = "public"
)

// Grant types a client may be registered for. The password grant is listed
// only so it can be rejected explicitly.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypePassword          = "password"
)

// Response types. The implicit ones return tokens in the redirect fragment
// and never a refresh token.
const (
	ResponseTypeCode         = "code"
	ResponseTypeToken        = "token"
	ResponseTypeIDTokenToken = "id_token token"
)

// NormalizeResponseType sorts the space separated values of a response
// type, so "token id_token" and "id_token token" compare equal.
func NormalizeResponseType(rt string) string {
	fields := strings.Fields(rt)
	slices.Sort(fields)
	return strings.Join(slices.Compact(fields), " ")
}

// SupportedResponseType reports whether rt is a response type the IdP can
// answer. rt must be normalized.
func SupportedResponseType(rt string) bool {
	return rt == ResponseTypeCode || IsImplicit(rt)
}

// IsImplicit reports whether rt is answered with tokens from the
// authorization endpoint. rt must be normalized.
func IsImplicit(rt string) bool {
	return rt == ResponseTypeToken || rt == ResponseTypeIDTokenToken
}

type Client struct {
	ID                string
	Name              string
	SecretHash        string // argon2 encoded, empty for public clients
	Type              ClientType
	Scopes            []string
	DefaultScopes     []string
	GrantTypes        []string
	ResponseTypes     []string
	RedirectURIs      []string // ordered, first is the default
	CORSOrigins       []string
	AllowURIWildcards bool
	SkipConsent       bool
	OwnerID           string // optional
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (c *Client) IsPublic() bool { return c.Type == ClientTypePublic }

func (c *Client) HasGrantType(gt string) bool { return slices.Contains(c.GrantTypes, gt) }

func (c *Client) HasResponseType(rt string) bool {
	rt = NormalizeResponseType(rt)
	return slices.ContainsFunc(c.ResponseTypes, func(registered string) bool {
		return NormalizeResponseType(registered) == rt
	})
}
