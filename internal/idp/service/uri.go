package service

import (
	"errors"
	"net/url"
	"slices"
	"strings"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
)

var (
	ErrURIWildcardDisabled = errors.New("wildcards are not allowed for this client")
	ErrURIWildcardCount    = errors.New("only one wildcard is allowed")
	ErrURIWildcardPlace    = errors.New("wildcards are only allowed in the hostname")
	ErrURIInvalid          = errors.New("invalid URI")
)

var loopbackHosts = []string{"localhost", "127.0.0.1", "::1"}

// ValidateURIPattern checks a redirect URI or CORS origin before it is
// saved on a client.
func ValidateURIPattern(pattern string, allowWildcards bool) error {
	n := strings.Count(pattern, "*")
	if n > 0 && !allowWildcards {
		return ErrURIWildcardDisabled
	}
	if n > 1 {
		return ErrURIWildcardCount
	}

	u, err := url.Parse(pattern)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrURIInvalid
	}
	if n == 1 && !strings.Contains(u.Hostname(), "*") {
		return ErrURIWildcardPlace
	}
	return nil
}

// MatchesRedirectURI reports whether uri is one of the client's redirect
// URIs. Scheme, path and port must match exactly (loopback hosts ignore the
// port) and the registered query parameters must all be present.
func MatchesRedirectURI(client *domain.Client, uri string) bool {
	cand, err := url.Parse(uri)
	if err != nil || cand.Fragment != "" || cand.Host == "" {
		return false
	}

	for _, registered := range client.RedirectURIs {
		reg, err := url.Parse(registered)
		if err != nil {
			continue
		}
		if reg.Scheme != cand.Scheme || reg.EscapedPath() != cand.EscapedPath() {
			continue
		}
		if !matchHostname(reg.Hostname(), cand.Hostname(), client.AllowURIWildcards) {
			continue
		}
		if reg.Port() != cand.Port() && !isLoopback(cand.Hostname()) {
			continue
		}
		if !querySubset(reg.Query(), cand.Query()) {
			continue
		}
		return true
	}
	return false
}

// MatchesOrigin reports whether a CORS origin is allowed for the client.
// Userinfo and port must match exactly.
func MatchesOrigin(client *domain.Client, origin string) bool {
	cand, err := url.Parse(origin)
	if err != nil || cand.Host == "" {
		return false
	}

	for _, allowed := range client.CORSOrigins {
		reg, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if reg.Scheme != cand.Scheme || reg.Port() != cand.Port() {
			continue
		}
		if reg.User.String() != cand.User.String() {
			continue
		}
		if matchHostname(reg.Hostname(), cand.Hostname(), client.AllowURIWildcards) {
			return true
		}
	}
	return false
}

// matchHostname compares hostnames case-insensitively. With wildcards on, a
// single "*" in the pattern stands for one or more non-dot characters.
func matchHostname(pattern, host string, allowWildcards bool) bool {
	pattern = strings.ToLower(pattern)
	host = strings.ToLower(host)

	if !allowWildcards || strings.Count(pattern, "*") != 1 {
		return pattern == host
	}

	prefix, suffix, _ := strings.Cut(pattern, "*")
	if len(host) <= len(prefix)+len(suffix) {
		return false
	}
	if !strings.HasPrefix(host, prefix) || !strings.HasSuffix(host, suffix) {
		return false
	}
	label := host[len(prefix) : len(host)-len(suffix)]
	return !strings.Contains(label, ".")
}

func isLoopback(host string) bool {
	return slices.Contains(loopbackHosts, host)
}

// querySubset reports whether every registered parameter value is present
// in the candidate query.
func querySubset(registered, candidate url.Values) bool {
	for key, values := range registered {
		have := candidate[key]
		for _, v := range values {
			if !slices.Contains(have, v) {
				return false
			}
		}
	}
	return true
}
