package domain

import "time"

// AuthorizationCode is the cached state behind an issued code. It lives in
// the shared cache under (client_id, SHA-256 of the code) and is redeemed at
// most once.
type AuthorizationCode struct {
	ClientID            string         `json:"client_id"`
	RedirectURI         string         `json:"redirect_uri"`
	UserID              string         `json:"sub"`
	Scopes              []string       `json:"scopes"`
	Claims              map[string]any `json:"claims,omitempty"`
	CodeChallenge       string         `json:"code_challenge,omitempty"`
	CodeChallengeMethod string         `json:"code_challenge_method,omitempty"`
	Nonce               string         `json:"nonce,omitempty"`
	AuthTime            time.Time      `json:"auth_time"`
	AMR                 []string       `json:"amr,omitempty"`
	SessionID           string         `json:"sid,omitempty"`

	// Email is only set when the user picked an address other than their
	// primary one.
	Email string `json:"email,omitempty"`
}
