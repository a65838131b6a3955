package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/siteauth/pkg/idx"
)

// Default lifetimes. Both are overridable from configuration.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Values of the "typ" claim. A verifier accepts exactly one of them, on
// top of the two kinds being signed with different keys.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is shared by both kinds. Email and Role are only set on access
// tokens.
type Claims struct {
	jwt.RegisteredClaims

	Type  string `json:"typ"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// NewAccessClaims builds the claims for an access token issued at now.
func NewAccessClaims(subject, email, role, issuer string, audience []string, ttl time.Duration, now time.Time) Claims {
	c := newClaims(TypeAccess, subject, issuer, audience, ttl, now)
	c.Email, c.Role = email, role
	return c
}

// NewRefreshClaims builds the claims for a refresh token issued at now.
// Every token gets its own jti, so two refresh tokens minted for one user
// in the same second still differ.
func NewRefreshClaims(subject, issuer string, audience []string, ttl time.Duration, now time.Time) Claims {
	return newClaims(TypeRefresh, subject, issuer, audience, ttl, now)
}

func newClaims(typ, subject, issuer string, audience []string, ttl time.Duration, now time.Time) Claims {
	issued := jwt.NewNumericDate(now)
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        idx.NewAt(now).String(),
			Subject:   subject,
			Issuer:    issuer,
			Audience:  audience,
			IssuedAt:  issued,
			NotBefore: issued,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: typ,
	}
}
