package http

import (
	"net/http"
	"net/url"
	"strings"
)

// Endpoint paths.
const (
	pathDiscovery  = "/.well-known/openid-configuration"
	pathJWKS       = "/.well-known/jwks.json"
	pathAuthorize  = "/identity/oidc/authorize"
	pathToken      = "/identity/oidc/token"
	pathRevoke     = "/identity/oidc/revoke"
	pathUserInfo   = "/identity/oidc/userinfo"
	pathDeviceAuth = "/identity/oidc/device/authorize"
	pathDevice     = "/identity/oidc/device"
	pathLogout     = "/identity/oidc/logout"
	pathLogin      = "/identity/login"
)

// IssuerFunc returns the issuer URL a request is served under.
type IssuerFunc func(r *http.Request) string

// FixedIssuer always answers with issuer, or derives it from the request
// when issuer is empty.
func FixedIssuer(issuer string) IssuerFunc {
	issuer = strings.TrimRight(issuer, "/")
	if issuer != "" {
		return func(*http.Request) string { return issuer }
	}
	return RequestIssuer
}

// RequestIssuer derives the issuer from the scheme and host the client
// used, honouring X-Forwarded-Proto from a fronting proxy.
func RequestIssuer(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// localPath reports whether next is a same-origin path safe to redirect to.
func localPath(next string) bool {
	return strings.HasPrefix(next, "/") &&
		!strings.HasPrefix(next, "//") &&
		!strings.HasPrefix(next, "/\\")
}

func loginRedirect(next string) string {
	return pathLogin + "?next=" + url.QueryEscape(next)
}
