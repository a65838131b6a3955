package http

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/aussiebroadwan/siteauth/api/auth" // Swagger docs
	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/internal/auth/store"
	"github.com/aussiebroadwan/siteauth/pkg/httpx"
	"github.com/aussiebroadwan/siteauth/pkg/jwtx"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Limits pairs a rate-limit ceiling with the limiter that enforces it.
type Limits struct {
	Config  httpx.RateLimitConfig
	Limiter httpx.Limiter
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	accessKeys   *jwtx.KeyManager
	refreshKeys  *jwtx.KeyManager
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Gateway   *service.Gateway
	Users     *service.UserService
	TwoFactor *service.TwoFactorService
	Admin     *service.AdminService

	// Social enables the provider login routes when set. SocialCompleteURL
	// is the browser landing page for their outcome; empty answers JSON.
	Social            *service.SocialLogin
	SocialCompleteURL string

	// LoginLimits gates register, login and login/2fa. GeneralLimits covers
	// every other route. A nil Limiter disables that limit.
	LoginLimits   Limits
	GeneralLimits Limits

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	Now func() time.Time
}

func NewRouter(
	accessKeys, refreshKeys *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		accessKeys:   accessKeys,
		refreshKeys:  refreshKeys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Now:          time.Now,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.SecurityHeaders,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTwoFactor()
	r.registerProfile()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Site Authentication Service API
//	@version		1.0.0
//	@description	Registration, login with optional TOTP second factor, token refresh and account administration.
//	@description
//	@description				Access and refresh tokens are Ed25519-signed JWTs. Access tokens can be verified with the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/siteauth
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
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// limit returns the middleware for l, or a pass-through when l has no limiter.
func (r *Router) limit(name string, l Limits) httpx.Middleware {
	if l.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return httpx.RateLimit(l.Limiter, name, l.Config, httpx.IPKeyExtractor(r.TrustProxy))
}

// public chains h behind the general limit only.
func (r *Router) public(h http.HandlerFunc) http.Handler {
	return httpx.Chain(h, r.limit("general", r.GeneralLimits))
}

// authed chains h behind the general limit and a valid access token.
func (r *Router) authed(h http.HandlerFunc) http.Handler {
	return httpx.Chain(h,
		r.limit("general", r.GeneralLimits),
		httpx.AuthnMiddleware(r.accessKeys.Verifier),
	)
}

// admin additionally requires the admin role.
func (r *Router) admin(h http.HandlerFunc) http.Handler {
	return httpx.Chain(h,
		r.limit("general", r.GeneralLimits),
		httpx.AuthnMiddleware(r.accessKeys.Verifier),
		httpx.RequireRole(string(domain.RoleAdmin)),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Gateway:    r.Gateway,
		TrustProxy: r.TrustProxy,
		Now:        r.Now,
	}

	// Credential-guessing endpoints share one strict per-address budget.
	login := r.limit("login", r.LoginLimits)
	r.Mux.Handle("POST /api/auth/register", httpx.Chain(http.HandlerFunc(h.HandleRegister), login))
	r.Mux.Handle("POST /api/auth/login", httpx.Chain(http.HandlerFunc(h.HandleLogin), login))
	r.Mux.Handle("POST /api/auth/login/2fa", httpx.Chain(http.HandlerFunc(h.HandleLoginTwoFactor), login))

	if r.Social != nil {
		sh := &SocialHandler{AuthHandler: h, Social: r.Social, CompleteURL: r.SocialCompleteURL}
		r.Mux.Handle("GET /api/auth/login/{provider}", r.public(sh.HandleStart))
		r.Mux.Handle("GET /api/auth/callback/{provider}", httpx.Chain(http.HandlerFunc(sh.HandleCallback), login))
	}

	r.Mux.Handle("POST /api/auth/refresh", r.public(h.HandleRefresh))
	r.Mux.Handle("POST /api/auth/logout", r.authed(h.HandleLogout))
	r.Mux.Handle("POST /api/auth/logout-all", r.authed(h.HandleLogoutAll))
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{TwoFactor: r.TwoFactor}

	r.Mux.Handle("POST /api/auth/2fa/generate", r.authed(h.HandleGenerate))
	r.Mux.Handle("GET /api/auth/2fa/qr-code", r.authed(h.HandleQRCode))
	r.Mux.Handle("POST /api/auth/2fa/enable", r.authed(h.HandleEnable))
	r.Mux.Handle("POST /api/auth/2fa/disable", r.authed(h.HandleDisable))
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{Users: r.Users}

	r.Mux.Handle("GET /api/user/profile", r.authed(h.HandleGet))
	r.Mux.Handle("PUT /api/user/profile", r.authed(h.HandleUpdate))
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{Admin: r.Admin}

	r.Mux.Handle("GET /api/admin/users", r.admin(h.HandleListUsers))
	r.Mux.Handle("GET /api/admin/stats", r.admin(h.HandleStats))
	r.Mux.Handle("PUT /api/admin/users/{id}/role", r.admin(h.HandleSetRole))
	r.Mux.Handle("PUT /api/admin/users/{id}/active", r.admin(h.HandleSetActive))
}

func (r *Router) registerSystem() {
	// Probes are polled by orchestrators and skip rate limiting.
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.accessKeys, r.refreshKeys))

	r.Mux.Handle("GET /api/health", r.public(HealthHandler(r.Now)))
	r.Mux.Handle("GET /.well-known/jwks.json", r.public(JWKSHandler(r.accessKeys.KeySet)))
}
