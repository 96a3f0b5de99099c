package jwtx

import (
	"fmt"
	"sync"

	"github.com/aussiebroadwan/idp/pkg/cryptox"
)

// AlgorithmRS256 is the only signing algorithm the IdP issues.
const AlgorithmRS256 = "RS256"

// KeyManager wires together the active signing key, the published KeySet and
// the verifiers built on top of it.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	// HintVerifier accepts expired tokens issued by us, for id_token_hint.
	HintVerifier Verifier

	signer Signer
	mu     sync.RWMutex
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// Issuer is the issuer claim (iss) that will be validated in tokens.
	// Empty skips the check, for issuers derived from the request host.
	Issuer string

	// PrivateKeyPEM is the RSA signing key (PKCS1 or PKCS8). When empty an
	// ephemeral key is generated and tokens do not survive a restart.
	PrivateKeyPEM []byte

	// RSABits is the size of a generated ephemeral key. Defaults to 2048.
	RSABits int
}

// NewKeyManager creates a KeyManager from the configured key or an
// ephemeral one. The key ID is always the RFC 7638 thumbprint.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	pemBytes := opts.PrivateKeyPEM
	if len(pemBytes) == 0 {
		bits := opts.RSABits
		if bits == 0 {
			bits = cryptox.MinRSABits
		}
		var err error
		pemBytes, err = cryptox.GenerateRSAKey(bits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate RS256 key: %w", err)
		}
	}

	signer, err := NewSignerRS256("", pemBytes)
	if err != nil {
		return nil, err
	}

	keyset := NewKeySet()
	if err := keyset.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
	}

	return &KeyManager{
		Verifier:     NewCommonRS256(keyset, VerifyOptions{Issuer: opts.Issuer}),
		HintVerifier: NewCommonRS256(keyset, VerifyOptions{Issuer: opts.Issuer, SkipExpiry: true}),
		KeySet:       keyset,
		signer:       signer,
	}, nil
}

// Algorithm returns the signing algorithm being used.
func (km *KeyManager) Algorithm() string {
	return AlgorithmRS256
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}

// GetSigner returns the active signing key.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.signer
}

// SetSigner makes signer the active key. The previous key stays in the
// KeySet so tokens it signed keep verifying.
func (km *KeyManager) SetSigner(signer Signer) error {
	if signer == nil {
		return fmt.Errorf("jwtx: signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
	}
	km.signer = signer
	return nil
}
