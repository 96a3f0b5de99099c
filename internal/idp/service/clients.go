package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/idx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

var ErrClientNotFound = errors.New("client not found")

var registrableGrantTypes = []string{
	domain.GrantTypeAuthorizationCode,
	domain.GrantTypeDeviceCode,
	domain.GrantTypeClientCredentials,
	domain.GrantTypeRefreshToken,
}

// ClientService registers clients out of band: from the seed file or an
// operator.
type ClientService struct {
	Store    store.Store
	Registry *ClientRegistry
	Now      func() time.Time
}

// ClientParams describes a client to register. An empty ID is generated.
type ClientParams struct {
	ID                string
	Name              string
	Type              domain.ClientType
	Secret            string
	Scopes            []string
	DefaultScopes     []string
	GrantTypes        []string
	ResponseTypes     []string
	RedirectURIs      []string
	CORSOrigins       []string
	AllowURIWildcards bool
	SkipConsent       bool
	OwnerID           string
}

// ValidateClient checks the registration rules before a client is saved.
func ValidateClient(p ClientParams) error {
	if p.Type != domain.ClientTypeConfidential && p.Type != domain.ClientTypePublic {
		return fmt.Errorf("%w: unknown client type %q", ErrInvalidRequest, p.Type)
	}
	for _, gt := range p.GrantTypes {
		if !slices.Contains(registrableGrantTypes, gt) {
			return fmt.Errorf("%w: grant type %q cannot be registered", ErrInvalidRequest, gt)
		}
	}
	if p.Type == domain.ClientTypePublic && slices.Contains(p.GrantTypes, domain.GrantTypeClientCredentials) {
		return fmt.Errorf("%w: public clients cannot use client_credentials", ErrInvalidRequest)
	}
	if p.Type == domain.ClientTypeConfidential && slices.Contains(p.GrantTypes, domain.GrantTypeDeviceCode) {
		return fmt.Errorf("%w: the device grant needs a public client", ErrInvalidRequest)
	}
	for _, rt := range p.ResponseTypes {
		norm := domain.NormalizeResponseType(rt)
		if !domain.SupportedResponseType(norm) {
			return fmt.Errorf("%w: response type %q not supported", ErrInvalidRequest, rt)
		}
		if norm == domain.ResponseTypeCode && !slices.Contains(p.GrantTypes, domain.GrantTypeAuthorizationCode) {
			return fmt.Errorf("%w: response type code needs the authorization_code grant", ErrInvalidRequest)
		}
	}
	if !ScopesSubset(p.DefaultScopes, p.Scopes) {
		return fmt.Errorf("%w: default scopes must be client scopes", ErrInvalidRequest)
	}
	for _, uri := range p.RedirectURIs {
		if err := ValidateURIPattern(uri, p.AllowURIWildcards); err != nil {
			return fmt.Errorf("%w: redirect uri %q: %v", ErrInvalidRequest, uri, err)
		}
	}
	for _, origin := range p.CORSOrigins {
		if err := ValidateURIPattern(origin, p.AllowURIWildcards); err != nil {
			return fmt.Errorf("%w: origin %q: %v", ErrInvalidRequest, origin, err)
		}
	}
	return nil
}

// CreateClient stores a new client. Confidential clients without a secret
// get a generated one, returned once in plaintext.
func (s *ClientService) CreateClient(ctx context.Context, p ClientParams) (clientID string, plaintextSecret string, err error) {
	l := slogx.FromContext(ctx)

	if err := ValidateClient(p); err != nil {
		return "", "", err
	}

	var secretHash string
	if p.Type == domain.ClientTypeConfidential {
		plaintextSecret = p.Secret
		if plaintextSecret == "" {
			plaintextSecret, err = cryptox.GenerateToken(cryptox.TokenSize512)
			if err != nil {
				return "", "", err
			}
		}
		secretHash, err = cryptox.HashPassword(plaintextSecret)
		if err != nil {
			l.Error("failed to hash client secret", "error", err)
			return "", "", err
		}
	}

	clientID = p.ID
	if clientID == "" {
		clientID = idx.New().String()
	}

	now := clock(s.Now)
	err = s.Store.Clients().CreateClient(ctx, domain.Client{
		ID:                clientID,
		Name:              p.Name,
		SecretHash:        secretHash,
		Type:              p.Type,
		Scopes:            p.Scopes,
		DefaultScopes:     p.DefaultScopes,
		GrantTypes:        p.GrantTypes,
		ResponseTypes:     normalizeResponseTypes(p.ResponseTypes),
		RedirectURIs:      p.RedirectURIs,
		CORSOrigins:       p.CORSOrigins,
		AllowURIWildcards: p.AllowURIWildcards,
		SkipConsent:       p.SkipConsent,
		OwnerID:           p.OwnerID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		l.Error("failed to create client", "error", err)
		return "", "", err
	}

	s.Registry.Forget(clientID)
	l.Info("client created", "client_id", clientID, "name", p.Name, "type", p.Type)
	return clientID, plaintextSecret, nil
}

// ListClients returns every registered client.
func (s *ClientService) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.Store.Clients().ListClients(ctx)
}

// DeleteClient removes a client and, through the schema, its tokens.
func (s *ClientService) DeleteClient(ctx context.Context, clientID string) error {
	l := slogx.FromContext(ctx)

	err := s.Store.Clients().DeleteClient(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrClientNotFound
	}
	if err != nil {
		l.Error("failed to delete client", "error", err, "client_id", clientID)
		return err
	}

	s.Registry.Forget(clientID)
	l.Info("client deleted", "client_id", clientID)
	return nil
}

func normalizeResponseTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, rt := range types {
		out = append(out, domain.NormalizeResponseType(rt))
	}
	return out
}
