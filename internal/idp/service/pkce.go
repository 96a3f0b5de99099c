package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// normalizePKCE validates the challenge method of an authorization request.
// A challenge without a method defaults to S256.
func normalizePKCE(challenge, method string, required bool) (string, string, error) {
	challenge = strings.TrimSpace(challenge)
	method = strings.TrimSpace(method)

	if challenge == "" {
		if required {
			return "", "", describe(ErrInvalidRequest, "code_challenge required")
		}
		if method != "" {
			return "", "", describe(ErrInvalidRequest, "code_challenge_method without code_challenge")
		}
		return "", "", nil
	}

	switch {
	case method == "" || strings.EqualFold(method, PKCEMethodS256):
		return challenge, PKCEMethodS256, nil
	case strings.EqualFold(method, PKCEMethodPlain):
		return challenge, PKCEMethodPlain, nil
	default:
		return "", "", describe(ErrInvalidRequest, "transform algorithm not supported")
	}
}

// VerifyCodeVerifier checks a PKCE code_verifier against the stored
// challenge. No stored challenge accepts any verifier.
func VerifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		return true
	}

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	switch {
	case strings.EqualFold(method, PKCEMethodPlain):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case method == "" || strings.EqualFold(method, PKCEMethodS256):
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}
