package httpx

import (
	"net/http"
	"strings"
)

// BearerToken extracts an RFC 6750 bearer token from the Authorization
// header. Tokens in the query string are never accepted.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HasQueryAccessToken reports whether the caller tried to pass
// access_token as a URL query parameter.
func HasQueryAccessToken(r *http.Request) bool {
	return r.URL.Query().Has("access_token")
}

// WriteBearerError writes an RFC 6750 error with the WWW-Authenticate
// challenge and a JSON body.
func WriteBearerError(w http.ResponseWriter, status int, code, desc string) {
	challenge := `Bearer error="` + code + `"`
	if desc != "" {
		challenge += `, error_description="` + strings.ReplaceAll(desc, `"`, `'`) + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteJSON(w, status, map[string]string{
		"error":             code,
		"error_description": desc,
	})
}
