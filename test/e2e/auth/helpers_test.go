package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/app"
	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * End-to-end helpers. Each service instance is built from environment
 * variables the same way cmd/auth does, with all state files in a
 * per-test directory, and served over a real listener.
 *
 * The password pepper is process wide, so tests in this package do not
 * run in parallel.
 */

const (
	testPassword = "E2e!Passw0rd"
	testIssuer   = "https://auth.e2e.test"
)

// dataDir returns a fresh directory and points every AUTH_* file there.
func dataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	t.Setenv("AUTH_ISSUER", testIssuer)
	t.Setenv("AUTH_DATABASE_FILE", filepath.Join(dir, "siteauth.db"))
	t.Setenv("AUTH_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("AUTH_MASTER_KEY_FILE", filepath.Join(dir, "master.key"))
	t.Setenv("AUTH_ACCESS_KEY_FILE", filepath.Join(dir, "access_ed25519.pem"))
	t.Setenv("AUTH_REFRESH_KEY_FILE", filepath.Join(dir, "refresh_ed25519.pem"))
	t.Setenv("AUTH_LOGIN_RATE_LIMIT", "1000")
	t.Setenv("AUTH_GLOBAL_RATE_LIMIT", "1000")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

type instance struct {
	app    *app.Application
	srv    *httptest.Server
	client *authsdk.Client
}

// stop shuts the instance down. Safe to call twice.
func (in *instance) stop() {
	if in.srv == nil {
		return
	}
	in.srv.Close()
	_ = in.app.Close()
	in.srv = nil
}

// startService loads the configuration from the environment and serves it.
func startService(t *testing.T) *instance {
	t.Helper()

	cfg := app.LoadConfig()
	a, err := app.New(cfg, app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	in := &instance{app: a, srv: httptest.NewServer(a.Handler())}
	in.client = authsdk.NewClient(in.srv.URL)
	t.Cleanup(in.stop)
	return in
}

func register(t *testing.T, c *authsdk.Client, email string) {
	t.Helper()
	_, err := c.Register(context.Background(), authsdk.RegisterRequest{
		Email: email, Password: testPassword, FirstName: "End", LastName: "ToEnd",
	})
	require.NoError(t, err)
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, time.Now(), totp.ValidateOpts{
		Period: 30, Skew: 1, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

// startRedis runs a throwaway Redis container and returns its address.
func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	addr, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)
	return addr
}
