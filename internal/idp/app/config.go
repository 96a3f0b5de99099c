package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/cache"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/joho/godotenv"
)

type Config struct {
	Issuer         string // Optional: fixed issuer URL; empty derives it from each request
	SigningKeyFile string // Optional: RSA private key PEM; empty generates an ephemeral key

	AccessTokenTTL       time.Duration // Access token lifetime (default: 1h)
	AccessTokenFormat    string        // opaque or jwt (default: opaque)
	IDTokenTTL           time.Duration // ID token lifetime (default: 5m)
	RefreshTokenTTL      time.Duration // Refresh token lifetime, 0 never expires (default: 0)
	RotateRefreshToken   bool          // Issue a new refresh token on every use (default: true)
	AuthorizationCodeTTL time.Duration // Authorization code lifetime (default: 60s)
	DeviceCodeTTL        time.Duration // Device code lifetime (default: 5m)
	DeviceCodeInterval   time.Duration // Minimum device polling interval (default: 5s)
	LogoutConfirm        bool          // Ask before RP-initiated logout (default: true)

	CookieSecret   string        // Optional: hex or base64 secret for cookies and consent tokens; empty is random per boot
	CookieSecure   bool          // Mark cookies HTTPS only (default: true when the issuer is https)
	SessionTTL     time.Duration // Login session lifetime (default: 24h)
	ClientCacheTTL time.Duration // How long client lookups are cached (default: 1m)

	Cache cache.Config // Shared cache driver, memory or redis (default: memory)

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./idp.db)
	PepperFile           string        // Optional: path to file containing pepper for password hashing (default: ./pepper)
	SeedFile             string        // Optional: YAML file of clients and users loaded into an empty database
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

// LoadConfig reads the configuration from the environment. A .env file in
// the working directory is loaded first when present; real environment
// variables win over it.
func LoadConfig() Config {
	_ = godotenv.Load()

	issuer := strings.TrimRight(os.Getenv("IDP_ISSUER"), "/")
	cfg := Config{
		Issuer:         issuer,
		SigningKeyFile: os.Getenv("IDP_SIGNING_KEY_FILE"),

		AccessTokenTTL:       getEnvDurationOrDefault("IDP_ACCESS_TOKEN_TTL", service.DefaultAccessTokenTTL),
		AccessTokenFormat:    getEnvOrDefault("IDP_ACCESS_TOKEN_FORMAT", string(service.AccessTokenOpaque)),
		IDTokenTTL:           getEnvDurationOrDefault("IDP_ID_TOKEN_TTL", service.DefaultIDTokenTTL),
		RefreshTokenTTL:      getEnvDurationOrDefault("IDP_REFRESH_TOKEN_TTL", 0),
		RotateRefreshToken:   getEnvBoolOrDefault("IDP_ROTATE_REFRESH_TOKEN", true),
		AuthorizationCodeTTL: getEnvDurationOrDefault("IDP_AUTHORIZATION_CODE_TTL", service.DefaultAuthorizationCodeTTL),
		DeviceCodeTTL:        getEnvDurationOrDefault("IDP_DEVICE_CODE_TTL", service.DefaultDeviceCodeTTL),
		DeviceCodeInterval:   getEnvDurationOrDefault("IDP_DEVICE_CODE_INTERVAL", service.DefaultDeviceCodeInterval),
		LogoutConfirm:        getEnvBoolOrDefault("IDP_LOGOUT_CONFIRM", true),

		CookieSecret:   os.Getenv("IDP_COOKIE_SECRET"),
		CookieSecure:   getEnvBoolOrDefault("IDP_COOKIE_SECURE", strings.HasPrefix(issuer, "https://")),
		SessionTTL:     getEnvDurationOrDefault("IDP_SESSION_TTL", 24*time.Hour),
		ClientCacheTTL: getEnvDurationOrDefault("IDP_CLIENT_CACHE_TTL", time.Minute),

		Cache: cache.Config{
			Driver: getEnvOrDefault("IDP_CACHE_DRIVER", cache.DriverMemory),
			Redis: cache.RedisConfig{
				Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
				Username: os.Getenv("REDIS_USERNAME"),
				Password: os.Getenv("REDIS_PASSWORD"),
				DB:       getEnvIntOrDefault("REDIS_DB", 0),
				Prefix:   getEnvOrDefault("REDIS_PREFIX", "idp:"),
			},
		},

		DatabaseFile:         getEnvOrDefault("IDP_DATABASE_FILE", "idp.db"),
		PepperFile:           getEnvOrDefault("IDP_PEPPER_FILE", "pepper"),
		SeedFile:             os.Getenv("IDP_SEED_FILE"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
}

// Settings builds the grant engine settings.
func (c Config) Settings() service.Settings {
	return service.Settings{
		Issuer:               c.Issuer,
		AccessTokenTTL:       c.AccessTokenTTL,
		AccessTokenFormat:    service.AccessTokenFormat(c.AccessTokenFormat),
		IDTokenTTL:           c.IDTokenTTL,
		RefreshTokenTTL:      c.RefreshTokenTTL,
		RotateRefreshToken:   c.RotateRefreshToken,
		AuthorizationCodeTTL: c.AuthorizationCodeTTL,
		DeviceCodeTTL:        c.DeviceCodeTTL,
		DeviceCodeInterval:   c.DeviceCodeInterval,
		LogoutConfirm:        c.LogoutConfirm,
	}.WithDefaults()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds, matching the OAuth expires_in convention
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
