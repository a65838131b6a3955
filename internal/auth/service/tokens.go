package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/pkg/jwtx"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
)

// Audiences bound into each token kind.
const (
	AccessAudience  = "siteauth:access"
	RefreshAudience = "siteauth:refresh"
)

// TokenKind selects which key a token is signed and verified with.
type TokenKind int

const (
	KindAccess TokenKind = iota
	KindRefresh
)

func (k TokenKind) String() string {
	if k == KindRefresh {
		return jwtx.TypeRefresh
	}
	return jwtx.TypeAccess
}

// TokenIssuer mints and verifies access and refresh JWTs. Each kind has its
// own KeyManager; they must not share a key.
type TokenIssuer struct {
	Access     *jwtx.KeyManager
	Refresh    *jwtx.KeyManager
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        Clock
}

// IssueAccessToken signs {sub, email, role} for u.
func (s *TokenIssuer) IssueAccessToken(u domain.User) (domain.IssuedToken, error) {
	ttl := s.AccessTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}
	claims := jwtx.NewAccessClaims(u.ID, u.Email, string(u.Role), s.Issuer, []string{AccessAudience}, ttl, s.Now.now())
	return s.sign(s.Access, claims)
}

// IssueRefreshToken signs a refresh token for u with the refresh key.
func (s *TokenIssuer) IssueRefreshToken(u domain.User) (domain.IssuedToken, error) {
	ttl := s.RefreshTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultRefreshTokenTTL
	}
	claims := jwtx.NewRefreshClaims(u.ID, s.Issuer, []string{RefreshAudience}, ttl, s.Now.now())
	return s.sign(s.Refresh, claims)
}

func (s *TokenIssuer) sign(km *jwtx.KeyManager, claims jwtx.Claims) (domain.IssuedToken, error) {
	token, err := km.Signer.Sign(claims)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	return domain.IssuedToken{Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks token against the key of kind. Every failure is reported
// as ErrInvalidToken; the precise cause only reaches the log.
func (s *TokenIssuer) Verify(ctx context.Context, kind TokenKind, token string) (jwtx.Claims, error) {
	km := s.Access
	if kind == KindRefresh {
		km = s.Refresh
	}
	claims, err := km.Verifier.Verify(token)
	if err != nil {
		slogx.FromContext(ctx).Debug("token verification failed",
			slog.String("kind", kind.String()),
			slog.Any("error", err),
		)
		return jwtx.Claims{}, ErrInvalidToken
	}
	return claims, nil
}
