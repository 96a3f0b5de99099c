package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultClientCacheSize = 256
	DefaultClientCacheTTL  = 30 * time.Second
)

// ClientRegistry resolves clients from the store with a short-lived LRU in
// front. Writers must call Forget after changing a client.
type ClientRegistry struct {
	Store store.Store

	cache *expirable.LRU[string, domain.Client]
}

// NewClientRegistry returns a registry caching lookups for ttl. A
// non-positive ttl uses DefaultClientCacheTTL.
func NewClientRegistry(st store.Store, ttl time.Duration) *ClientRegistry {
	if ttl <= 0 {
		ttl = DefaultClientCacheTTL
	}
	return &ClientRegistry{
		Store: st,
		cache: expirable.NewLRU[string, domain.Client](DefaultClientCacheSize, nil, ttl),
	}
}

// Lookup returns the client or nil when it does not exist.
func (r *ClientRegistry) Lookup(ctx context.Context, clientID string) (*domain.Client, error) {
	if clientID == "" {
		return nil, nil
	}
	if c, ok := r.cache.Get(clientID); ok {
		return &c, nil
	}

	c, err := r.Store.Clients().GetClientByID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.cache.Add(clientID, c)
	return &c, nil
}

// Forget drops a cached client.
func (r *ClientRegistry) Forget(clientID string) {
	r.cache.Remove(clientID)
}

// ValidateSecret checks a candidate secret against the stored hash. Public
// clients have no secret and never validate.
func (r *ClientRegistry) ValidateSecret(client *domain.Client, candidate string) bool {
	if client == nil || client.IsPublic() || client.SecretHash == "" || candidate == "" {
		return false
	}
	return cryptox.VerifyPassword(candidate, client.SecretHash) == nil
}

// ResponseTypesSupported is the union of response types over every
// registered client.
func (r *ClientRegistry) ResponseTypesSupported(ctx context.Context) ([]string, error) {
	clients, err := r.Store.Clients().ListClients(ctx)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, c := range clients {
		for _, rt := range c.ResponseTypes {
			if !slices.Contains(out, rt) {
				out = append(out, rt)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

// OriginAllowed reports whether any client lists origin. Used for CORS
// preflight requests, which carry no client id.
func (r *ClientRegistry) OriginAllowed(ctx context.Context, origin string) bool {
	clients, err := r.Store.Clients().ListClients(ctx)
	if err != nil {
		return false
	}
	for i := range clients {
		if MatchesOrigin(&clients[i], origin) {
			return true
		}
	}
	return false
}
