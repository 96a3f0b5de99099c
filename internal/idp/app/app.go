package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/cache"
	httpapi "github.com/aussiebroadwan/idp/internal/idp/http"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/internal/idp/store/drivers/sqlite"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the identity provider with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	cache      cache.Cache
	keyManager *jwtx.KeyManager
	cookieKeys CookieKeys

	// Services
	grants              *service.GrantServer
	userService         *service.UserService
	clientService       *service.ClientService
	seedService         *service.SeedService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "idp",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	keyManager, err := InitSigningKeys(app.cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.keyManager = keyManager

	app.cookieKeys, err = DeriveCookieKeys(app.cfg.CookieSecret, app.logger)
	if err != nil {
		return nil, err
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()

	if err := app.seed(context.Background()); err != nil {
		_ = app.cache.Close()
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("idp starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"issuer", app.cfg.Issuer,
		"cache", app.cfg.Cache.Driver,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains HTTP, stops housekeeping and closes the cache and store
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down idp...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.Close(); err != nil {
		return err
	}

	app.logger.Info("idp stopped")
	return nil
}

// Handler returns the routed HTTP handler, for serving it elsewhere.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Close releases the cache and the database. Shutdown calls it after the
// server has drained.
func (app *Application) Close() error {
	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCache connects the shared cache holding authorization and device codes
func (app *Application) initCache() error {
	c, err := cache.New(app.cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("cache not reachable: %w", err)
	}

	app.cache = c
	return nil
}

// initServices initializes the grant engine and its supporting services
func (app *Application) initServices() {
	settings := app.cfg.Settings()

	registry := service.NewClientRegistry(app.db, app.cfg.ClientCacheTTL)
	tokens := service.NewTokenStore(app.db)
	codes := &service.AuthorizationCodes{
		Cache: app.cache,
		Store: app.db,
		TTL:   settings.AuthorizationCodeTTL,
	}

	app.grants = &service.GrantServer{
		Settings: settings,
		Validator: &service.Validator{
			Settings: settings,
			Clients:  registry,
			Tokens:   tokens,
			Codes:    codes,
			Store:    app.db,
			Keys:     app.keyManager,
		},
		Clients:   registry,
		Codes:     codes,
		Devices:   &service.DeviceCodes{Cache: app.cache, Clients: registry},
		Tokens:    tokens,
		Generator: &service.TokenGenerator{Settings: settings, Keys: app.keyManager},
		Store:     app.db,
		Keys:      app.keyManager,
	}

	app.userService = &service.UserService{Store: app.db, Issuer: totpIssuer(app.cfg.Issuer)}
	app.clientService = &service.ClientService{Store: app.db, Registry: registry}
	app.seedService = &service.SeedService{
		Store:   app.db,
		Clients: app.clientService,
		Users:   app.userService,
	}

	app.housekeepingService = service.NewHousekeepingService(
		tokens,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// seed loads the seed file into an empty database. Generated secrets and
// TOTP enrolment URLs are logged once; they cannot be recovered later.
func (app *Application) seed(ctx context.Context) error {
	if app.cfg.SeedFile == "" {
		return nil
	}

	data, err := LoadSeedFile(app.cfg.SeedFile)
	if err != nil {
		return err
	}

	res, err := app.seedService.Seed(slogx.WithContext(ctx, app.logger), data)
	if err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}
	if res == nil {
		app.logger.Info("database already seeded, skipping seed file", "path", app.cfg.SeedFile)
		return nil
	}

	for clientID, secret := range res.ClientSecrets {
		app.logger.Warn("generated client secret, store it now", "client_id", clientID, "client_secret", secret)
	}
	for username, url := range res.TOTPURLs {
		app.logger.Warn("enrolled TOTP, add it to an authenticator app", "username", username, "otpauth_url", url)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	// An empty issuer is derived from each request
	router := httpapi.NewRouter(
		httpapi.FixedIssuer(app.cfg.Issuer),
		BuildVersion,
		app.db,
		app.cache,
		app.logger,
	)

	// Wire services to router
	router.Grants = app.grants
	router.UserService = app.userService
	router.ClientService = app.clientService
	router.Sessions = httpapi.NewSessionStore(
		app.cookieKeys.SessionHash,
		app.cookieKeys.SessionBlock,
		app.cfg.CookieSecure,
		app.cfg.SessionTTL,
	)
	router.Consent = service.NewConsentSigner(app.cookieKeys.Consent, app.grants.Settings.AuthorizationCodeTTL)
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// totpIssuer is the label authenticator apps show next to the account.
func totpIssuer(issuer string) string {
	if issuer == "" {
		return "idp"
	}
	if u, err := url.Parse(issuer); err == nil && u.Host != "" {
		return u.Host
	}
	return issuer
}
