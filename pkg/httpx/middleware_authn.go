package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/siteauth/pkg/jwtx"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
)

// Wire error codes written by the middlewares in this package.
const (
	CodeInvalidToken = "invalid_token"
	CodeForbidden    = "forbidden"
	CodeRateLimited  = "rate_limited"
)

// AuthnMiddleware requires a valid bearer access token. Every failure gets
// the same 401 body; the cause is only logged.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := bearerToken(r)
			if !ok {
				writeBearerError(w)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Debug("access token rejected", "err", err)
				writeBearerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(ctx, claims)))
		})
	}
}

// RequireRole lets the request through only when the authenticated caller
// holds role. It must run after AuthnMiddleware.
func RequireRole(role string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				WriteError(w, http.StatusForbidden, CodeForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RFC 6750 challenge plus our JSON error body.
func writeBearerError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteError(w, http.StatusUnauthorized, CodeInvalidToken, "invalid or expired token")
}
