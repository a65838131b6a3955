package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteauth/pkg/httpx"
	"github.com/aussiebroadwan/siteauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("first"), mark("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestAuthnAndRequireRole(t *testing.T) {
	t.Parallel()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:    "test",
		TokenType: jwtx.TypeAccess,
	})
	require.NoError(t, err)

	sign := func(role string) string {
		tok, err := km.Signer.Sign(jwtx.NewAccessClaims("user-1", "a@x.com", role, "test", nil, time.Minute, time.Now()))
		require.NoError(t, err)
		return tok
	}

	var seenUser string
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = httpx.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}), httpx.AuthnMiddleware(km.Verifier), httpx.RequireRole("admin"))

	call := func(authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing token", func(t *testing.T) {
		rec := call("")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("garbage token gets the same body", func(t *testing.T) {
		missing := call("")
		garbage := call("Bearer abc.def.ghi")
		require.Equal(t, missing.Code, garbage.Code)
		require.Equal(t, missing.Body.String(), garbage.Body.String())
	})

	t.Run("standard user is forbidden", func(t *testing.T) {
		rec := call("Bearer " + sign("user"))
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.JSONEq(t, `{"error":"forbidden","message":"insufficient permissions"}`, rec.Body.String())
	})

	t.Run("admin passes", func(t *testing.T) {
		rec := call("bearer " + sign("admin"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", seenUser)
	})
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpx.SecurityHeaders(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
