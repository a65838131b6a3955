package http_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.register(t, "Ada@Example.com")
	require.NotEmpty(t, id)

	t.Run("duplicate email differing in case", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", authsdk.RegisterRequest{
			Email: "ada@example.COM", Password: strongPassword, FirstName: "Ada", LastName: "Byron",
		})
		requireError(t, rec, authsdk.ErrConflict)
	})

	t.Run("weak password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", authsdk.RegisterRequest{
			Email: "weak@example.com", Password: "password", FirstName: "Weak", LastName: "Pass",
		})
		requireError(t, rec, authsdk.ErrWeakCredential)
		require.Contains(t, decode[authsdk.ErrorResponse](t, rec).Message, "password")
	})

	t.Run("bad email", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", authsdk.RegisterRequest{
			Email: "not-an-email", Password: strongPassword, FirstName: "No", LastName: "Mail",
		})
		requireError(t, rec, authsdk.ErrWeakCredential)
	})

	t.Run("short name", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", authsdk.RegisterRequest{
			Email: "short@example.com", Password: strongPassword, FirstName: "A", LastName: "Lovelace",
		})
		requireError(t, rec, authsdk.ErrWeakCredential)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", `{"email":`)
		requireError(t, rec, authsdk.ErrInvalidRequest)
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "grace@example.com")

	resp := f.login(t, " GRACE@example.com ", strongPassword)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, int64((15 * time.Minute).Seconds()), resp.ExpiresIn)
	require.False(t, resp.TwoFactorRequired)
	require.NotNil(t, resp.User)
	require.Equal(t, "grace@example.com", resp.User.Email)
	require.Equal(t, "user", resp.User.Role)

	t.Run("unknown email and wrong password look the same", func(t *testing.T) {
		unknown := f.do(t, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{Email: "nobody@example.com", Password: strongPassword})
		wrong := f.do(t, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{Email: "grace@example.com", Password: "Wr0ng!Pass"})

		requireError(t, unknown, authsdk.ErrInvalidCredentials)
		requireError(t, wrong, authsdk.ErrInvalidCredentials)
		require.JSONEq(t, unknown.Body.String(), wrong.Body.String())
	})

	t.Run("empty password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{Email: "grace@example.com"})
		requireError(t, rec, authsdk.ErrInvalidCredentials)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "", `[]`)
		requireError(t, rec, authsdk.ErrInvalidRequest)
	})
}

func TestRefreshAfterAccessExpiry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "linus@example.com")
	resp := f.login(t, "linus@example.com", strongPassword)

	rec := f.do(t, http.MethodGet, "/api/user/profile", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	f.clock.Advance(16 * time.Minute)

	rec = f.do(t, http.MethodGet, "/api/user/profile", resp.AccessToken, nil)
	requireError(t, rec, authsdk.ErrInvalidToken)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")

	rec = f.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refreshed := decode[authsdk.RefreshResponse](t, rec)
	require.NotEmpty(t, refreshed.AccessToken)
	require.Equal(t, "Bearer", refreshed.TokenType)

	rec = f.do(t, http.MethodGet, "/api/user/profile", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The refresh token is not consumed by use.
	f.clock.Advance(time.Hour)
	rec = f.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRefreshRejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "ken@example.com")
	resp := f.login(t, "ken@example.com", strongPassword)

	t.Run("empty token", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{})
		requireError(t, rec, authsdk.ErrInvalidToken)
	})

	t.Run("access token in place of refresh token", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: resp.AccessToken})
		requireError(t, rec, authsdk.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: "not.a.jwt"})
		requireError(t, rec, authsdk.ErrInvalidToken)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		g := newFixture(t)
		g.register(t, "old@example.com")
		old := g.login(t, "old@example.com", strongPassword)
		g.clock.Advance(8 * 24 * time.Hour)

		rec := g.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: old.RefreshToken})
		requireError(t, rec, authsdk.ErrInvalidToken)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "barbara@example.com")
	resp := f.login(t, "barbara@example.com", strongPassword)

	t.Run("requires bearer", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/logout", "", authsdk.LogoutRequest{RefreshToken: resp.RefreshToken})
		requireError(t, rec, authsdk.ErrInvalidToken)
	})

	rec := f.do(t, http.MethodPost, "/api/auth/logout", resp.AccessToken, authsdk.LogoutRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "logged out", decode[authsdk.MessageResponse](t, rec).Message)

	rec = f.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: resp.RefreshToken})
	requireError(t, rec, authsdk.ErrInvalidToken)

	// Logging out twice is not an error.
	rec = f.do(t, http.MethodPost, "/api/auth/logout", resp.AccessToken, authsdk.LogoutRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutIgnoresForeignRefreshToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "victim@example.com")
	f.register(t, "mallory@example.com")
	victim := f.login(t, "victim@example.com", strongPassword)
	mallory := f.login(t, "mallory@example.com", strongPassword)

	rec := f.do(t, http.MethodPost, "/api/auth/logout", mallory.AccessToken, authsdk.LogoutRequest{RefreshToken: victim.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: victim.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogoutAll(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "edsger@example.com")
	first := f.login(t, "edsger@example.com", strongPassword)
	second := f.login(t, "edsger@example.com", strongPassword)

	rec := f.do(t, http.MethodPost, "/api/auth/logout-all", first.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, int64(2), decode[authsdk.LogoutAllResponse](t, rec).Revoked)

	for _, rt := range []string{first.RefreshToken, second.RefreshToken} {
		rec = f.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: rt})
		requireError(t, rec, authsdk.ErrInvalidToken)
	}
}
