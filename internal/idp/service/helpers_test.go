package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/cache"
	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/internal/idp/store/drivers/sqlite"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://idp.example.com"
	testRedirect = "https://app.example.com/cb"
	testSecret   = "s3cret"
	testPassword = "correct horse battery staple"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// engine is a fully wired grant server over an in-memory store and cache.
type engine struct {
	*service.GrantServer

	clock   *fakeClock
	store   *sqlite.Store
	cache   *cache.Memory
	users   *service.UserService
	clients *service.ClientService
	codes   *service.AuthorizationCodes
	alice   domain.User
}

func newEngine(t *testing.T, mutate ...func(*service.Settings)) *engine {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clk := &fakeClock{now: time.Now().Truncate(time.Second)}
	mem := cache.NewMemoryWithClock(clk.Now, 0)
	t.Cleanup(func() { _ = mem.Close() })

	keys, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Issuer: testIssuer})
	require.NoError(t, err)

	settings := service.DefaultSettings()
	settings.Issuer = testIssuer
	for _, m := range mutate {
		m(&settings)
	}
	settings = settings.WithDefaults()

	registry := service.NewClientRegistry(st, time.Minute)
	tokens := service.NewTokenStore(st)
	tokens.Now = clk.Now
	codes := &service.AuthorizationCodes{Cache: mem, Store: st, TTL: settings.AuthorizationCodeTTL}

	e := &engine{
		GrantServer: &service.GrantServer{
			Settings: settings,
			Validator: &service.Validator{
				Settings: settings,
				Clients:  registry,
				Tokens:   tokens,
				Codes:    codes,
				Store:    st,
				Keys:     keys,
				Now:      clk.Now,
			},
			Clients:   registry,
			Codes:     codes,
			Devices:   &service.DeviceCodes{Cache: mem, Clients: registry, Now: clk.Now},
			Tokens:    tokens,
			Generator: &service.TokenGenerator{Settings: settings, Keys: keys, Now: clk.Now},
			Store:     st,
			Keys:      keys,
		},
		clock:   clk,
		store:   st,
		cache:   mem,
		users:   &service.UserService{Store: st, Issuer: "idp-test", Now: clk.Now},
		clients: &service.ClientService{Store: st, Registry: registry, Now: clk.Now},
		codes:   codes,
	}

	e.alice, err = e.users.CreateUser(ctx, service.NewUser{
		Username:      "alice",
		Name:          "Alice Example",
		Email:         "alice@example.com",
		EmailVerified: true,
		Password:      testPassword,
	})
	require.NoError(t, err)

	e.mustClient(t, service.ClientParams{
		ID:            "web",
		Name:          "Web App",
		Type:          domain.ClientTypeConfidential,
		Secret:        testSecret,
		Scopes:        []string{"openid", "email", "profile", "api"},
		DefaultScopes: []string{"openid"},
		GrantTypes:    []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken},
		ResponseTypes: []string{domain.ResponseTypeCode},
		RedirectURIs:  []string{testRedirect},
		CORSOrigins:   []string{"https://app.example.com"},
	})
	e.mustClient(t, service.ClientParams{
		ID:            "spa",
		Name:          "Single Page App",
		Type:          domain.ClientTypePublic,
		Scopes:        []string{"openid", "email", "profile"},
		DefaultScopes: []string{"openid"},
		GrantTypes:    []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken},
		ResponseTypes: []string{domain.ResponseTypeCode},
		RedirectURIs:  []string{"http://127.0.0.1/callback"},
	})
	e.mustClient(t, service.ClientParams{
		ID:            "tv",
		Name:          "Television",
		Type:          domain.ClientTypePublic,
		Scopes:        []string{"openid", "profile"},
		DefaultScopes: []string{"openid", "profile"},
		GrantTypes:    []string{domain.GrantTypeDeviceCode, domain.GrantTypeRefreshToken},
	})
	e.mustClient(t, service.ClientParams{
		ID:            "worker",
		Name:          "Batch Worker",
		Type:          domain.ClientTypeConfidential,
		Secret:        testSecret,
		Scopes:        []string{"api"},
		DefaultScopes: []string{"api"},
		GrantTypes:    []string{domain.GrantTypeClientCredentials},
	})
	return e
}

func (e *engine) mustClient(t *testing.T, p service.ClientParams) {
	t.Helper()
	_, _, err := e.clients.CreateClient(context.Background(), p)
	require.NoError(t, err)
}

func (e *engine) session() *domain.Session {
	return &domain.Session{
		ID:       "sess-1",
		UserID:   e.alice.ID,
		AuthTime: e.clock.Now(),
		AMR:      []string{service.AMRPassword},
	}
}

func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
