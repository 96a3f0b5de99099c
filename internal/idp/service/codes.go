package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/cache"
	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// AuthorizationCodes keeps issued codes in the shared cache, keyed by
// client and code hash, until they are redeemed once or expire.
type AuthorizationCodes struct {
	Cache cache.Cache
	Store store.Store
	TTL   time.Duration
}

func codeKey(clientID, code string) string {
	return "authz:" + clientID + ":" + cryptox.FingerprintToken(code)
}

// Create stores the grant behind code. The email override is dropped when
// it is the user's primary address.
func (c *AuthorizationCodes) Create(ctx context.Context, client *domain.Client, code string, grant domain.AuthorizationCode) error {
	grant.ClientID = client.ID

	if grant.Email != "" {
		u, err := c.Store.Users().GetUserByID(ctx, grant.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err == nil && u.Email == grant.Email {
			grant.Email = ""
		}
	}

	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultAuthorizationCodeTTL
	}
	return cache.SetJSON(ctx, c.Cache, codeKey(client.ID, code), grant, ttl)
}

// Lookup peeks at a code without consuming it. Nil when it does not exist.
func (c *AuthorizationCodes) Lookup(ctx context.Context, call *Call, clientID, code string) (*domain.AuthorizationCode, error) {
	key := codeKey(clientID, code)
	if rec, ok := call.code(key); ok {
		return rec, nil
	}

	var rec domain.AuthorizationCode
	_, err := cache.GetJSON(ctx, c.Cache, key, &rec)
	if errors.Is(err, cache.ErrMiss) {
		call.rememberCode(key, nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	call.rememberCode(key, &rec)
	return &rec, nil
}

// Validate consumes the code and loads its grant into req. It returns false
// when the code is unknown, already used, or its user can no longer be
// resolved. The code is gone after this call whatever the outcome.
func (c *AuthorizationCodes) Validate(ctx context.Context, call *Call, clientID, code string, req *TokenRequest) (bool, error) {
	log := slogx.FromContext(ctx)
	key := codeKey(clientID, code)

	var rec domain.AuthorizationCode
	err := cache.TakeJSON(ctx, c.Cache, key, &rec)
	if errors.Is(err, cache.ErrMiss) {
		log.Info("authorization code not found or already used", "client_id", clientID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	call.rememberCode(key, &rec)

	if rec.ClientID != clientID {
		return false, nil
	}

	user, err := c.Store.Users().GetUserByID(ctx, rec.UserID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("authorization code subject no longer exists", "client_id", clientID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !user.Active {
		return false, nil
	}

	req.User = &user
	req.Scopes = rec.Scopes
	req.RedirectURI = rec.RedirectURI
	req.CodeChallenge = rec.CodeChallenge
	req.CodeChallengeMethod = rec.CodeChallengeMethod
	req.Claims = rec.Claims
	req.Email = rec.Email
	req.Nonce = rec.Nonce
	req.AuthTime = rec.AuthTime
	req.AMR = rec.AMR
	req.SessionID = rec.SessionID
	return true, nil
}

// Invalidate deletes a code. Deleting a missing code is a no-op.
func (c *AuthorizationCodes) Invalidate(ctx context.Context, clientID, code string) error {
	return c.Cache.Delete(ctx, codeKey(clientID, code))
}
