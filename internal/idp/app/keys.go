package app

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"golang.org/x/crypto/hkdf"
)

// InitSigningKeys creates the KeyManager from the configured PEM file, or
// from a fresh ephemeral key when none is configured.
//
// With an ephemeral key every ID token and JWT access token becomes
// unverifiable when the service restarts.
func InitSigningKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{Issuer: cfg.Issuer}

	if cfg.SigningKeyFile != "" {
		pemBytes, err := os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}
		opts.PrivateKeyPEM = pemBytes
	}

	keyManager, err := jwtx.NewKeyManager(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	signer := keyManager.GetSigner()
	if cfg.SigningKeyFile != "" {
		logger.Info("signing key loaded",
			"algorithm", keyManager.Algorithm(),
			"kid", signer.KID(),
			"path", cfg.SigningKeyFile,
		)
	} else {
		logger.Warn("generated ephemeral signing key, issued tokens will not verify after a restart",
			"algorithm", keyManager.Algorithm(),
			"kid", signer.KID(),
		)
	}

	return keyManager, nil
}

// CookieKeys are the keys derived from the cookie secret.
type CookieKeys struct {
	SessionHash  []byte // HMAC key of the session cookie
	SessionBlock []byte // AES-256 key of the session cookie
	Consent      []byte // HMAC key of consent tokens
}

// DeriveCookieKeys expands the configured secret into independent keys.
// An empty secret gets a random one, so sessions end on restart.
func DeriveCookieKeys(secret string, logger *slog.Logger) (CookieKeys, error) {
	master, err := decodeSecret(secret)
	if err != nil {
		return CookieKeys{}, err
	}
	if len(master) == 0 {
		logger.Warn("IDP_COOKIE_SECRET not set, sessions will not survive a restart")
		master = []byte(cryptox.MustGenerateToken(cryptox.TokenSize256))
	}

	var keys CookieKeys
	for _, k := range []struct {
		out  *[]byte
		info string
		size int
	}{
		{&keys.SessionHash, "idp session hash", 64},
		{&keys.SessionBlock, "idp session block", 32},
		{&keys.Consent, "idp consent", 64},
	} {
		*k.out = make([]byte, k.size)
		if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(k.info)), *k.out); err != nil {
			return CookieKeys{}, fmt.Errorf("failed to derive cookie key: %w", err)
		}
	}
	return keys, nil
}

// decodeSecret accepts hex or base64. Short secrets are rejected.
func decodeSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, nil
	}

	var (
		b   []byte
		err error
	)
	if b, err = hex.DecodeString(secret); err != nil {
		if b, err = base64.StdEncoding.DecodeString(secret); err != nil {
			if b, err = base64.RawURLEncoding.DecodeString(secret); err != nil {
				return nil, fmt.Errorf("IDP_COOKIE_SECRET must be hex or base64")
			}
		}
	}
	if len(b) < 32 {
		return nil, fmt.Errorf("IDP_COOKIE_SECRET must be at least 32 bytes, got %d", len(b))
	}
	return b, nil
}
