package service

import "time"

type AccessTokenFormat string

const (
	AccessTokenOpaque AccessTokenFormat = "opaque"
	AccessTokenJWT    AccessTokenFormat = "jwt"
)

// Default lifetimes of the grant engine.
const (
	DefaultAccessTokenTTL       = time.Hour
	DefaultIDTokenTTL           = 5 * time.Minute
	DefaultAuthorizationCodeTTL = 60 * time.Second
	DefaultDeviceCodeTTL        = 5 * time.Minute
	DefaultDeviceCodeInterval   = 5 * time.Second
)

// Settings is the engine configuration. It is built once at startup and
// handed to every component that needs it.
type Settings struct {
	// Issuer is the fixed issuer URL. When empty the issuer is derived
	// from the host of each request.
	Issuer string

	AccessTokenTTL    time.Duration
	AccessTokenFormat AccessTokenFormat
	IDTokenTTL        time.Duration

	// RefreshTokenTTL of zero issues non-expiring refresh tokens.
	RefreshTokenTTL    time.Duration
	RotateRefreshToken bool

	AuthorizationCodeTTL time.Duration

	DeviceCodeTTL      time.Duration
	DeviceCodeInterval time.Duration

	// LogoutConfirm makes RP-initiated logout always ask the user first.
	LogoutConfirm bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		AccessTokenTTL:       DefaultAccessTokenTTL,
		AccessTokenFormat:    AccessTokenOpaque,
		IDTokenTTL:           DefaultIDTokenTTL,
		RotateRefreshToken:   true,
		AuthorizationCodeTTL: DefaultAuthorizationCodeTTL,
		DeviceCodeTTL:        DefaultDeviceCodeTTL,
		DeviceCodeInterval:   DefaultDeviceCodeInterval,
		LogoutConfirm:        true,
	}
}

// WithDefaults fills unset lifetimes. RefreshTokenTTL is left alone since
// zero is meaningful.
func (s Settings) WithDefaults() Settings {
	if s.AccessTokenTTL <= 0 {
		s.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if s.AccessTokenFormat == "" {
		s.AccessTokenFormat = AccessTokenOpaque
	}
	if s.IDTokenTTL <= 0 {
		s.IDTokenTTL = DefaultIDTokenTTL
	}
	if s.AuthorizationCodeTTL <= 0 {
		s.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if s.DeviceCodeTTL <= 0 {
		s.DeviceCodeTTL = DefaultDeviceCodeTTL
	}
	if s.DeviceCodeInterval <= 0 {
		s.DeviceCodeInterval = DefaultDeviceCodeInterval
	}
	return s
}

// clock returns now() or the wall clock when now is nil.
func clock(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now()
}
