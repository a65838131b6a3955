package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	httpapi "github.com/aussiebroadwan/siteauth/internal/auth/http"
	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/aussiebroadwan/siteauth/pkg/httpx"
	"github.com/aussiebroadwan/siteauth/pkg/jwtx"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// BuildVersion is overridden at build time with -ldflags "-X ...app.BuildVersion=...".
var BuildVersion = "dev"

const redisKeyPrefix = "siteauth:rl"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	extraProviders map[string]*service.SocialProvider

	// Core dependencies
	db          *sqlite.Store
	accessKeys  *jwtx.KeyManager
	refreshKeys *jwtx.KeyManager
	sealer      *cryptox.Sealer
	redis       *redis.Client // nil unless REDIS_ADDR is set and reachable

	// Services
	userService      *service.UserService
	tokenIssuer      *service.TokenIssuer
	ledgerService    *service.LedgerService
	twoFactorService *service.TwoFactorService
	gateway          *service.Gateway
	adminService     *service.AdminService
	socialLogin      *service.SocialLogin
	sweeper          *service.Sweeper

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// Option customises New.
type Option func(*Application)

// WithClock replaces the wall clock for tokens, challenges, TOTP and rate limits.
func WithClock(now func() time.Time) Option {
	return func(a *Application) { a.now = now }
}

// WithSocialProvider adds or replaces a social login provider.
func WithSocialProvider(p *service.SocialProvider) Option {
	return func(a *Application) {
		if a.extraProviders == nil {
			a.extraProviders = make(map[string]*service.SocialProvider)
		}
		a.extraProviders[p.Name] = p
	}
}

// WithLogger replaces the logger built from the config.
func WithLogger(l *slog.Logger) Option {
	return func(a *Application) { a.logger = l }
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = NewLogger(cfg)
	}

	// An empty path keeps whatever pepper the process already has.
	if cfg.PepperFile != "" {
		cryptox.SetPepperPath(cfg.PepperFile)
	}

	db, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.logger.Info("database migrations applied", slog.String("file", cfg.DatabaseFile))

	if app.accessKeys, app.refreshKeys, err = InitAuthKeys(cfg, app.now, app.logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	if app.sealer, err = InitSealer(cfg, app.logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	app.initRedis()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// NewLogger builds the service logger from the config.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "siteauth",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// OpenStore opens the SQLite database and applies migrations.
func OpenStore(cfg Config) (*sqlite.Store, error) {
	dsn := cfg.DatabaseFile
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", dsn)
	}

	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Users exposes the Credential Store operations for operator tooling and tests.
func (app *Application) Users() *service.UserService {
	return app.userService
}

// Sweeper exposes the expiry purge so tests can run a pass on demand.
func (app *Application) Sweeper() *service.Sweeper {
	return app.sweeper
}

// Run serves HTTP and runs the sweeper until ctx is cancelled or the
// listener fails, then drains in-flight requests for at most
// ShutdownGracePeriod and releases the store.
func (app *Application) Run(ctx context.Context) error {
	app.logger.Info("auth service starting",
		slog.Int("port", app.cfg.Port),
		slog.String("version", BuildVersion),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return app.sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down auth service")

		drain, cancel := context.WithTimeout(context.WithoutCancel(gctx), app.cfg.ShutdownGracePeriod)
		defer cancel()
		if err := app.server.Shutdown(drain); err != nil {
			app.logger.Error("graceful server shutdown failed", slog.Any("error", err))
			return app.server.Close()
		}
		return nil
	})

	runErr := g.Wait()
	if err := app.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Close releases the database and Redis connections without touching the
// HTTP server. Tests that never call Run use it directly.
func (app *Application) Close() error {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initRedis connects to Redis when configured. An unreachable server is
// logged and the service falls back to in-process rate limiting.
func (app *Application) initRedis() {
	if app.cfg.RedisAddr == "" {
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		app.logger.Warn("redis unreachable, using in-process rate limiting",
			slog.String("addr", app.cfg.RedisAddr),
			slog.Any("error", err),
		)
		_ = client.Close()
		return
	}

	app.redis = client
	app.logger.Info("rate limiting backed by redis", slog.String("addr", app.cfg.RedisAddr))
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	now := service.Clock(app.now)

	app.userService = &service.UserService{Store: app.db, Now: now}
	app.tokenIssuer = &service.TokenIssuer{
		Access:     app.accessKeys,
		Refresh:    app.refreshKeys,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
		Now:        now,
	}
	app.ledgerService = &service.LedgerService{Store: app.db, Now: now}
	app.twoFactorService = &service.TwoFactorService{
		Store:  app.db,
		Sealer: app.sealer,
		Issuer: app.cfg.TOTPIssuer,
		Now:    now,
	}
	app.gateway = &service.Gateway{
		Store:        app.db,
		Users:        app.userService,
		Tokens:       app.tokenIssuer,
		Ledger:       app.ledgerService,
		TwoFactor:    app.twoFactorService,
		ChallengeTTL: app.cfg.ChallengeTTL,
		Now:          now,
	}
	app.adminService = &service.AdminService{Store: app.db, Now: now}
	app.socialLogin = &service.SocialLogin{
		Gateway:    app.gateway,
		Providers:  app.socialProviders(),
		StateTTL:   app.cfg.SocialStateTTL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, name := range app.socialLogin.Enabled() {
		app.logger.Info("social login enabled", slog.String("provider", name))
	}

	app.sweeper = &service.Sweeper{
		Store:    app.db,
		Logger:   app.logger,
		Interval: app.cfg.HousekeepingInterval,
		Now:      now,
	}
}

// socialProviders builds the providers that have client credentials.
// Callbacks land on the issuer, which is the public base URL.
func (app *Application) socialProviders() map[string]*service.SocialProvider {
	callback := func(name string) string {
		return strings.TrimRight(app.cfg.Issuer, "/") + "/api/auth/callback/" + name
	}

	providers := make(map[string]*service.SocialProvider)
	if app.cfg.GoogleClientID != "" {
		providers[service.ProviderGoogle] = service.NewGoogleProvider(service.ProviderConfig{
			ClientID:     app.cfg.GoogleClientID,
			ClientSecret: app.cfg.GoogleClientSecret,
			RedirectURL:  callback(service.ProviderGoogle),
		})
	}
	if app.cfg.GitHubClientID != "" {
		providers[service.ProviderGitHub] = service.NewGitHubProvider(service.ProviderConfig{
			ClientID:     app.cfg.GitHubClientID,
			ClientSecret: app.cfg.GitHubClientSecret,
			RedirectURL:  callback(service.ProviderGitHub),
		})
	}
	for name, p := range app.extraProviders {
		providers[name] = p
	}
	return providers
}

// limiter builds the backend for one rate-limit ceiling.
func (app *Application) limiter(cfg httpx.RateLimitConfig) httpx.Limiter {
	if app.redis != nil {
		return httpx.NewRedisLimiter(app.redis, cfg, redisKeyPrefix, app.now)
	}
	return httpx.NewMemoryLimiter(cfg, app.now)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.accessKeys,
		app.refreshKeys,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.Gateway = app.gateway
	router.Users = app.userService
	router.TwoFactor = app.twoFactorService
	router.Admin = app.adminService
	router.Social = app.socialLogin
	router.SocialCompleteURL = app.cfg.SocialCompleteURL
	router.TrustProxy = app.cfg.TrustProxy
	router.Now = app.now

	loginCfg := httpx.RateLimitConfig{
		RequestsPerWindow: app.cfg.LoginRateLimit,
		Window:            app.cfg.LoginRateWindow,
	}
	generalCfg := httpx.RateLimitConfig{
		RequestsPerWindow: app.cfg.GlobalRateLimit,
		Window:            app.cfg.GlobalRateWindow,
	}
	router.LoginLimits = httpapi.Limits{Config: loginCfg, Limiter: app.limiter(loginCfg)}
	router.GeneralLimits = httpapi.Limits{Config: generalCfg, Limiter: app.limiter(generalCfg)}

	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
