package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// SeedData is the initial set of clients and users loaded on first start.
type SeedData struct {
	Clients []ClientParams
	Users   []SeedUser
}

// SeedUser is a NewUser that may ask for a fresh TOTP enrolment.
type SeedUser struct {
	NewUser
	EnrollTOTP bool
}

// SeedResult reports what Seed generated so the operator can record it.
type SeedResult struct {
	// ClientSecrets holds generated secrets, keyed by client id.
	ClientSecrets map[string]string
	// TOTPURLs holds otpauth:// URLs for enrolled users, keyed by username.
	TOTPURLs map[string]string
}

// SeedService loads SeedData into an empty store.
type SeedService struct {
	Store   store.Store
	Clients *ClientService
	Users   *UserService
}

// IsSeeded reports whether the store already holds clients or users.
func (s *SeedService) IsSeeded(ctx context.Context) (bool, error) {
	userEmpty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	clientEmpty, err := s.Store.Clients().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !userEmpty || !clientEmpty, nil
}

// Seed creates every client and user in data unless the store was seeded
// before, in which case it does nothing and returns a nil result.
func (s *SeedService) Seed(ctx context.Context, data SeedData) (*SeedResult, error) {
	l := slogx.FromContext(ctx)

	seeded, err := s.IsSeeded(ctx)
	if err != nil {
		return nil, err
	}
	if seeded {
		l.Debug("store already seeded")
		return nil, nil
	}

	res := &SeedResult{
		ClientSecrets: map[string]string{},
		TOTPURLs:      map[string]string{},
	}

	for _, cp := range data.Clients {
		id, secret, err := s.Clients.CreateClient(ctx, cp)
		if err != nil {
			return nil, errors.Join(errors.New("seed client "+cp.ID), err)
		}
		if secret != "" && cp.Secret == "" {
			res.ClientSecrets[id] = secret
		}
	}

	for _, su := range data.Users {
		u, err := s.Users.CreateUser(ctx, su.NewUser)
		if err != nil {
			return nil, errors.Join(errors.New("seed user "+su.Username), err)
		}
		if su.EnrollTOTP && !u.HasTOTP() {
			key, err := s.Users.EnrollTOTP(ctx, &u)
			if err != nil {
				return nil, err
			}
			res.TOTPURLs[u.Username] = key.URL()
		}
	}

	l.Info("store seeded",
		slog.Int("clients", len(data.Clients)),
		slog.Int("users", len(data.Users)),
	)
	return res, nil
}
