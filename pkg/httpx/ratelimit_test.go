package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteauth/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestClientIP(t *testing.T) {
	t.Parallel()

	t.Run("uses RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		require.Equal(t, "192.168.1.1", httpx.ClientIP(req, false))
	})

	t.Run("ignores forwarding headers unless trusted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")

		require.Equal(t, "192.168.1.1", httpx.ClientIP(req, false))
		require.Equal(t, "203.0.113.1", httpx.ClientIP(req, true))
	})

	t.Run("falls back to X-Real-IP when trusted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "203.0.113.2", httpx.ClientIP(req, true))
	})

	t.Run("returns RemoteAddr verbatim without port", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "unix-socket"
		require.Equal(t, "unix-socket", httpx.ClientIP(req, false))
	})
}

func TestMemoryLimiter_CeilingPerWindow(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := httpx.NewMemoryLimiter(httpx.LoginLimit, clock.Now)
	ctx := context.Background()

	for i := range 5 {
		ok, _, err := l.Allow(ctx, "login:10.0.0.1")
		require.NoError(t, err)
		require.True(t, ok, "attempt %d should pass", i+1)
	}

	ok, retry, err := l.Allow(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 15*time.Minute, retry)

	// Another address has its own budget.
	ok, _, err = l.Allow(ctx, "login:10.0.0.2")
	require.NoError(t, err)
	require.True(t, ok)

	// Nothing frees up before the oldest hit leaves the window.
	clock.t = clock.t.Add(14 * time.Minute)
	ok, retry, err = l.Allow(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, time.Minute, retry)

	clock.t = clock.t.Add(time.Minute)
	for range 5 {
		ok, _, err := l.Allow(ctx, "login:10.0.0.1")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestMemoryLimiter_SteadyTrickleStaysUnderCeiling(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	clock := &fakeClock{t: start}
	l := httpx.NewMemoryLimiter(httpx.LoginLimit, clock.Now)
	ctx := context.Background()

	// One attempt every 10s for an hour.
	var allowed []time.Time
	for clock.t.Before(start.Add(time.Hour)) {
		ok, _, err := l.Allow(ctx, "login:10.0.0.1")
		require.NoError(t, err)
		if ok {
			allowed = append(allowed, clock.t)
		}
		clock.t = clock.t.Add(10 * time.Second)
	}

	require.NotEmpty(t, allowed)
	for i := range allowed {
		n := 0
		for _, at := range allowed[i:] {
			if at.Sub(allowed[i]) < 15*time.Minute {
				n++
			}
		}
		require.LessOrEqual(t, n, 5, "window starting at %s", allowed[i].Sub(start))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute}
	limiter := httpx.NewMemoryLimiter(cfg, clock.Now)

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), httpx.RateLimit(limiter, "test", cfg, httpx.IPKeyExtractor(false)))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusNoContent, do().Code)
	require.Equal(t, http.StatusNoContent, do().Code)

	rec := do()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	require.JSONEq(t, `{"error":"rate_limited","message":"too many requests, please try again later"}`, rec.Body.String())
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("connection refused")
}

func TestRateLimitMiddleware_FailsOpenOnBackendError(t *testing.T) {
	t.Parallel()

	h := httpx.RateLimit(brokenLimiter{}, "test", httpx.LoginLimit, httpx.IPKeyExtractor(false))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
