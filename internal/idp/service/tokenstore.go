package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
)

// Token type hints accepted by the revocation endpoint (RFC 7009).
const (
	HintAccessToken  = "access_token"
	HintRefreshToken = "refresh_token"
)

// TokenStore persists hashed access and refresh tokens. Raw values never
// reach the database.
type TokenStore struct {
	st  store.Store
	Now func() time.Time
}

func NewTokenStore(st store.Store) *TokenStore {
	return &TokenStore{st: st}
}

// Hash is the one-way digest used for storage and lookup.
func (s *TokenStore) Hash(raw string) string {
	return cryptox.FingerprintToken(raw)
}

// Lookup returns the live token of type typ for raw, or nil.
func (s *TokenStore) Lookup(ctx context.Context, typ domain.TokenType, raw string) (*domain.Token, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := s.st.Tokens().GetTokenByHash(ctx, typ, s.Hash(raw), clock(s.Now))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Store inserts a token row.
func (s *TokenStore) Store(ctx context.Context, t domain.Token) error {
	return s.st.Tokens().CreateToken(ctx, t)
}

// StoreTx inserts a token row inside tx.
func (s *TokenStore) StoreTx(ctx context.Context, tx store.Tx, t domain.Token) error {
	return tx.Tokens().CreateToken(ctx, t)
}

// RevokeByRaw deletes the token matching raw. A known hint narrows the
// delete to that type; otherwise every type is tried. Unknown tokens are
// not an error.
func (s *TokenStore) RevokeByRaw(ctx context.Context, raw, hint string) error {
	if raw == "" {
		return nil
	}

	var types []domain.TokenType
	switch hint {
	case HintAccessToken:
		types = []domain.TokenType{domain.TokenTypeAccess}
	case HintRefreshToken:
		types = []domain.TokenType{domain.TokenTypeRefresh}
	}

	_, err := s.st.Tokens().DeleteTokensByHash(ctx, s.Hash(raw), types...)
	return err
}

// RevokeForClientUser deletes every token the client holds for the user.
func (s *TokenStore) RevokeForClientUser(ctx context.Context, clientID, userID string) (int64, error) {
	return s.st.Tokens().DeleteTokensForClientUser(ctx, clientID, userID)
}

// DeleteExpired removes rows past their expiry.
func (s *TokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	return s.st.Tokens().DeleteExpiredTokens(ctx, clock(s.Now))
}

// ScopesSubset reports whether every requested scope was granted.
func ScopesSubset(requested, granted []string) bool {
	for _, s := range requested {
		if !slices.Contains(granted, s) {
			return false
		}
	}
	return true
}
