package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/cache"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/slogx"

	_ "github.com/aussiebroadwan/idp/api/idp" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	issuer       IssuerFunc
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	cache cache.Cache

	Grants        *service.GrantServer
	UserService   *service.UserService
	ClientService *service.ClientService
	Sessions      *SessionStore
	Consent       *service.ConsentSigner
}

func NewRouter(
	issuer IssuerFunc,
	buildVersion string,
	st store.Store,
	c cache.Cache,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		cache:        c,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.SecurityHeaders,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerWellKnown()
	r.registerOIDC()
	r.registerDevice()
	r.registerLogin()
	r.registerClients()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Identity Provider API
//	@version		0.1.0
//	@description	OpenID Connect identity provider: authorization code with PKCE, device authorization,
//	@description	refresh token rotation, client credentials, revocation and RP-initiated logout.
//	@description
//	@description				ID tokens and JWT access tokens are signed using RS256 (RSA-SHA256) and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/idp
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerWellKnown() {
	// Public metadata - any origin may read it
	r.Mux.Handle("GET "+pathDiscovery,
		httpx.Chain(DiscoveryHandler(r.Grants.Clients, r.issuer),
			httpx.CORS(httpx.AllowAnyOrigin, http.MethodGet),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET "+pathJWKS,
		httpx.Chain(JWKSHandler(r.Grants.Keys.KeySet),
			httpx.CORS(httpx.AllowAnyOrigin, http.MethodGet),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerOIDC() {
	authorizeHandler := &AuthorizeHandler{
		Grants:   r.Grants,
		Users:    r.UserService,
		Sessions: r.Sessions,
		Consent:  r.Consent,
		Issuer:   r.issuer,
	}

	// The authorization endpoint only renders pages and redirects; password
	// checks happen on the login page.
	r.Mux.Handle("GET "+pathAuthorize,
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleGet),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("POST "+pathAuthorize,
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandlePost),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// Token, revocation: browser clients call these directly, so CORS is
	// granted to registered origins
	origins := clientOriginPolicy(r.Grants)

	tokenHandler := &TokenHandler{Grants: r.Grants, Issuer: r.issuer}
	r.Mux.Handle(pathToken,
		httpx.Chain(methods(tokenHandler, http.MethodPost),
			httpx.CORS(origins, http.MethodPost),
			httpx.RateLimitByClient(httpx.ClientLimit),
		),
	)

	revokeHandler := &RevokeHandler{Grants: r.Grants}
	r.Mux.Handle(pathRevoke,
		httpx.Chain(methods(revokeHandler, http.MethodPost),
			httpx.CORS(origins, http.MethodPost),
			httpx.RateLimitByClient(httpx.ClientLimit),
		),
	)

	userInfoHandler := &UserInfoHandler{Grants: r.Grants}
	r.Mux.Handle(pathUserInfo,
		httpx.Chain(methods(userInfoHandler, http.MethodGet, http.MethodPost),
			httpx.CORS(origins, http.MethodGet, http.MethodPost),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	logoutHandler := &LogoutHandler{Grants: r.Grants, Sessions: r.Sessions}
	r.Mux.Handle("GET "+pathLogout, httpx.Chain(logoutHandler, httpx.RateLimitByIP(httpx.PublicLimit)))
	r.Mux.Handle("POST "+pathLogout, httpx.Chain(logoutHandler, httpx.RateLimitByIP(httpx.PublicLimit)))
}

func (r *Router) registerDevice() {
	deviceAuthHandler := &DeviceAuthorizeHandler{Grants: r.Grants, Issuer: r.issuer}
	r.Mux.Handle("POST "+pathDeviceAuth,
		httpx.Chain(deviceAuthHandler,
			httpx.RateLimitByClient(httpx.ClientLimit),
		),
	)

	// Every request that resolves a user code, including confirm and deny,
	// is limited inside the handler. The plain form is not.
	deviceHandler := NewDeviceHandler(r.Grants, r.UserService, r.Sessions, httpx.DeviceLimit)
	r.Mux.HandleFunc("GET "+pathDevice, deviceHandler.HandleGet)
	r.Mux.HandleFunc("POST "+pathDevice, deviceHandler.HandlePost)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{Users: r.UserService, Sessions: r.Sessions}

	r.Mux.HandleFunc("GET "+pathLogin, h.HandleGet)
	r.Mux.Handle("GET /{$}", &HomeHandler{Users: r.UserService, Sessions: r.Sessions})

	// POST /login - strict rate limit by IP + username to prevent brute force
	r.Mux.Handle("POST "+pathLogin,
		httpx.Chain(http.HandlerFunc(h.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.LoginLimit, "username"),
		),
	)
}

func (r *Router) registerClients() {
	h := &ClientsHandler{ClientService: r.ClientService}
	admin := requireScope(r.Grants, service.ScopeAdmin)

	r.Mux.Handle("POST /identity/admin/clients",
		httpx.Chain(http.HandlerFunc(h.HandleCreate), admin, httpx.RateLimitByIP(httpx.ClientLimit)),
	)
	r.Mux.Handle("GET /identity/admin/clients",
		httpx.Chain(http.HandlerFunc(h.HandleList), admin, httpx.RateLimitByIP(httpx.ClientLimit)),
	)
	r.Mux.Handle("DELETE /identity/admin/clients/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete), admin, httpx.RateLimitByIP(httpx.ClientLimit)),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Grants.Keys.KeySet, r.cache))
}

// methods restricts h to the given methods. Preflight requests are let
// through for the CORS middleware to answer.
func methods(h http.Handler, allowed ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, m := range allowed {
			if r.Method == m {
				h.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		authsdk.NewOAuth2Error(http.StatusMethodNotAllowed, authsdk.ErrorCodeInvalidRequest, "method not allowed").WriteError(w)
	})
}
