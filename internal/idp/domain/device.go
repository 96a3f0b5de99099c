package domain

import "time"

// DeviceAuthorization is the RFC 8628 registration payload returned to the
// device and kept alongside the grant.
type DeviceAuthorization struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// DeviceGrant is the cached state of a pending device authorization.
// Granted is nil until the user decides.
type DeviceGrant struct {
	ClientID      string              `json:"client_id"`
	Scopes        []string            `json:"scopes"`
	Interval      int                 `json:"interval"` // seconds
	ExpiresAt     time.Time           `json:"expires_at"`
	Granted       *bool               `json:"granted,omitempty"`
	LastPollAt    *time.Time          `json:"last_poll_at,omitempty"`
	UserID        string              `json:"user_id,omitempty"`
	AuthTime      time.Time           `json:"auth_time,omitzero"`
	Authorization DeviceAuthorization `json:"authorization"`
}

func (g *DeviceGrant) Decided() bool { return g.Granted != nil }

// SlowDown reports whether a poll at now comes sooner than the interval
// allows after the previous one.
func (g *DeviceGrant) SlowDown(now time.Time) bool {
	if g.LastPollAt == nil {
		return false
	}
	return now.Before(g.LastPollAt.Add(time.Duration(g.Interval) * time.Second))
}
