package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer string // "iss" claim of every token (default: http://localhost:8080)

	DatabaseFile    string // SQLite database file (default: data/siteauth.db)
	PepperFile      string // password pepper, generated if absent (default: data/pepper)
	MasterKeyFile   string // key sealing TOTP secrets, generated if absent (default: data/master.key)
	AccessKeyFile   string // Ed25519 access-token key, generated if absent (default: data/access_ed25519.pem)
	RefreshKeyFile  string // Ed25519 refresh-token key, generated if absent (default: data/refresh_ed25519.pem)
	EphemeralKeys   bool   // keep signing keys and the master key in memory only (default: false)
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ChallengeTTL    time.Duration // lifetime of a pending two-factor login (default: 5m)
	TOTPIssuer      string        // label shown in authenticator apps (default: Vulsoft)

	LoginRateLimit   int           // login/register/2fa requests per window per address (default: 5)
	LoginRateWindow  time.Duration // (default: 15m)
	GlobalRateLimit  int           // other requests per GlobalRateWindow per address (default: 100)
	GlobalRateWindow time.Duration // (default: 15m)
	TrustProxy       bool          // take client address from X-Forwarded-For (default: false)

	GoogleClientID     string        // enables Google sign-in together with the secret
	GoogleClientSecret string
	GitHubClientID     string        // enables GitHub sign-in together with the secret
	GitHubClientSecret string
	SocialCompleteURL  string        // browser landing page for social logins; empty answers JSON
	SocialStateTTL     time.Duration // (default: 10m)

	RedisAddr     string // when set, rate-limit counters live in Redis
	RedisPassword string
	RedisDB       int

	Env                  string        // "dev" adds source locations to logs (default: dev)
	LogLevel             string        // debug, info, warn or error (default: info)
	LogFormat            string        // json or text (default: json)
	Port                 int           // listen port (default: 8080)
	ShutdownGracePeriod  time.Duration // drain time for in-flight requests (default: 10s)
	HousekeepingInterval time.Duration // how often expired rows are swept (default: 10m)
}

// LoadConfig reads the configuration from the environment. A .env file in
// the working directory is applied first; it never overrides variables that
// are already set.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: ignoring .env: %v\n", err)
	}

	return Config{
		Issuer:          envString("AUTH_ISSUER", "http://localhost:8080"),
		DatabaseFile:    envString("AUTH_DATABASE_FILE", "data/siteauth.db"),
		PepperFile:      envString("AUTH_PEPPER_FILE", "data/pepper"),
		MasterKeyFile:   envString("AUTH_MASTER_KEY_FILE", "data/master.key"),
		AccessKeyFile:   envString("AUTH_ACCESS_KEY_FILE", "data/access_ed25519.pem"),
		RefreshKeyFile:  envString("AUTH_REFRESH_KEY_FILE", "data/refresh_ed25519.pem"),
		EphemeralKeys:   envBool("AUTH_EPHEMERAL_KEYS", false),
		AccessTokenTTL:  envDuration("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: envDuration("AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ChallengeTTL:    envDuration("AUTH_CHALLENGE_TTL", 5*time.Minute),
		TOTPIssuer:      envString("AUTH_TOTP_ISSUER", "Vulsoft"),

		LoginRateLimit:   envInt("AUTH_LOGIN_RATE_LIMIT", 5),
		LoginRateWindow:  envDuration("AUTH_LOGIN_RATE_WINDOW", 15*time.Minute),
		GlobalRateLimit:  envInt("AUTH_GLOBAL_RATE_LIMIT", 100),
		GlobalRateWindow: envDuration("AUTH_GLOBAL_RATE_WINDOW", 15*time.Minute),
		TrustProxy:       envBool("AUTH_TRUST_PROXY", false),

		GoogleClientID:     os.Getenv("AUTH_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("AUTH_GOOGLE_CLIENT_SECRET"),
		GitHubClientID:     os.Getenv("AUTH_GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("AUTH_GITHUB_CLIENT_SECRET"),
		SocialCompleteURL:  os.Getenv("AUTH_SOCIAL_COMPLETE_URL"),
		SocialStateTTL:     envDuration("AUTH_SOCIAL_STATE_TTL", 10*time.Minute),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		Env:                  envString("ENV", "dev"),
		LogLevel:             envString("LOG_LEVEL", "info"),
		LogFormat:            envString("LOG_FORMAT", "json"),
		Port:                 envInt("PORT", 8080),
		ShutdownGracePeriod:  envDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: envDuration("HOUSEKEEPING_INTERVAL", 10*time.Minute),
	}
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Issuer == "" {
		errs = append(errs, errors.New("AUTH_ISSUER must not be empty"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL must be shorter than AUTH_REFRESH_TOKEN_TTL"))
	}
	if c.LoginRateLimit <= 0 || c.GlobalRateLimit <= 0 || c.LoginRateWindow <= 0 || c.GlobalRateWindow <= 0 {
		errs = append(errs, errors.New("rate limits and windows must be positive"))
	}
	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		errs = append(errs, errors.New("AUTH_GOOGLE_CLIENT_ID and AUTH_GOOGLE_CLIENT_SECRET must be set together"))
	}
	if (c.GitHubClientID == "") != (c.GitHubClientSecret == "") {
		errs = append(errs, errors.New("AUTH_GITHUB_CLIENT_ID and AUTH_GITHUB_CLIENT_SECRET must be set together"))
	}
	if c.SocialCompleteURL != "" {
		if u, err := url.Parse(c.SocialCompleteURL); err != nil || !u.IsAbs() {
			errs = append(errs, errors.New("AUTH_SOCIAL_COMPLETE_URL must be an absolute URL"))
		}
	}
	if !c.EphemeralKeys && c.AccessKeyFile != "" && c.AccessKeyFile == c.RefreshKeyFile {
		errs = append(errs, errors.New("AUTH_ACCESS_KEY_FILE and AUTH_REFRESH_KEY_FILE must differ"))
	}
	return errors.Join(errs...)
}

// env returns parse(os.Getenv(key)), or def when the variable is unset,
// blank or does not parse.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func envString(key, def string) string {
	return env(key, def, func(s string) (string, error) { return s, nil })
}

func envInt(key string, def int) int { return env(key, def, strconv.Atoi) }

func envBool(key string, def bool) bool { return env(key, def, strconv.ParseBool) }

// envDuration accepts Go durations ("90s", "1h30m") or a bare number of minutes.
func envDuration(key string, def time.Duration) time.Duration {
	return env(key, def, func(s string) (time.Duration, error) {
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		m, err := strconv.Atoi(s)
		return time.Duration(m) * time.Minute, err
	})
}
