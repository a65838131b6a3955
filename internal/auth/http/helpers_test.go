package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/app"
	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Str0ng!Pass"

func TestMain(m *testing.M) {
	cryptox.SetPepper("test-pepper")
	os.Exit(m.Run())
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	clock *fakeClock
	app   *app.Application
	h     http.Handler
}

func testConfig() app.Config {
	return app.Config{
		Issuer:               "https://auth.test",
		DatabaseFile:         ":memory:",
		EphemeralKeys:        true,
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		ChallengeTTL:         5 * time.Minute,
		TOTPIssuer:           "Vulsoft",
		LoginRateLimit:       1000,
		LoginRateWindow:      15 * time.Minute,
		GlobalRateLimit:      1000,
		GlobalRateWindow:     15 * time.Minute,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	}
}

func newFixture(t *testing.T, mutate ...func(*app.Config)) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, mutate...)
}

func newFixtureWith(t *testing.T, opts []app.Option, mutate ...func(*app.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]app.Option{
		app.WithClock(clock.Now),
		app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	a, err := app.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &fixture{clock: clock, app: a, h: a.Handler()}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, want *authsdk.APIError) {
	t.Helper()
	require.Equal(t, want.StatusCode, rec.Code, rec.Body.String())
	require.Equal(t, want.Code, decode[authsdk.ErrorResponse](t, rec).Error)
}

func (f *fixture) register(t *testing.T, email string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/auth/register", "", authsdk.RegisterRequest{
		Email: email, Password: strongPassword, FirstName: "Ada", LastName: "Lovelace",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authsdk.RegisterResponse](t, rec).UserID
}

func (f *fixture) login(t *testing.T, email, password string) authsdk.LoginResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authsdk.LoginResponse](t, rec)
}

// admin creates an administrator directly and logs it in.
func (f *fixture) admin(t *testing.T, email string) authsdk.LoginResponse {
	t.Helper()
	_, err := f.app.Users().CreateAdmin(context.Background(), service.RegisterInput{
		Email: email, Password: strongPassword, FirstName: "Root", LastName: "Admin",
	})
	require.NoError(t, err)
	return f.login(t, email, strongPassword)
}

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

func (f *fixture) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, f.clock.Now(), totpOpts)
	require.NoError(t, err)
	return code
}

// wrongCode returns a code that is not valid in any step the validator
// accepts at the current time.
func (f *fixture) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	valid := map[string]bool{}
	for _, d := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		c, err := totp.GenerateCodeCustom(secret, f.clock.Now().Add(d), totpOpts)
		require.NoError(t, err)
		valid[c] = true
	}
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no wrong code available")
	return ""
}

// enableTwoFactor enrols the caller and returns the plain secret.
func (f *fixture) enableTwoFactor(t *testing.T, accessToken string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/auth/2fa/generate", accessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	secret := decode[authsdk.TwoFactorGenerateResponse](t, rec).Secret

	rec = f.do(t, http.MethodPost, "/api/auth/2fa/enable", accessToken, authsdk.TwoFactorEnableRequest{Code: f.code(t, secret)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return secret
}
