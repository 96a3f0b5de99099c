package service

import (
	"context"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
)

// Call memoizes lookups for the duration of one protocol operation so that
// several validator checks in one request hit the stores once.
type Call struct {
	clients map[string]*domain.Client
	codes   map[string]*domain.AuthorizationCode
}

func NewCall() *Call {
	return &Call{
		clients: make(map[string]*domain.Client),
		codes:   make(map[string]*domain.AuthorizationCode),
	}
}

// Client returns the client, going to the registry once per id. A nil
// client with a nil error means the client does not exist.
func (c *Call) Client(ctx context.Context, reg *ClientRegistry, clientID string) (*domain.Client, error) {
	if c == nil {
		return reg.Lookup(ctx, clientID)
	}
	if client, ok := c.clients[clientID]; ok {
		return client, nil
	}
	client, err := reg.Lookup(ctx, clientID)
	if err != nil {
		return nil, err
	}
	c.clients[clientID] = client
	return client, nil
}

func (c *Call) code(key string) (*domain.AuthorizationCode, bool) {
	if c == nil {
		return nil, false
	}
	rec, ok := c.codes[key]
	return rec, ok
}

func (c *Call) rememberCode(key string, rec *domain.AuthorizationCode) {
	if c != nil {
		c.codes[key] = rec
	}
}
