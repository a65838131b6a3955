package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a compact JWT and returns its claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// Verification failures. Verify wraps exactly one of these.
var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrTokenType   = errors.New("jwtx: wrong token type")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// EdDSAVerifier accepts EdDSA tokens of a single "typ" signed by a key in
// its KeySet.
type EdDSAVerifier struct {
	keys   *KeySet
	typ    string
	parser *jwt.Parser
}

// NewVerifierEdDSA builds a verifier. An empty issuer or audience is not
// enforced. A nil now defaults to time.Now.
func NewVerifierEdDSA(keys *KeySet, issuer string, aud []string, typ string, now func() time.Time) *EdDSAVerifier {
	if now == nil {
		now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{AlgorithmEdDSA}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if len(aud) > 0 {
		opts = append(opts, jwt.WithAudience(aud...))
	}

	return &EdDSAVerifier{keys: keys, typ: typ, parser: jwt.NewParser(opts...)}
}

func (v *EdDSAVerifier) Verify(raw string) (Claims, error) {
	var claims Claims
	if _, err := v.parser.ParseWithClaims(raw, &claims, v.key); err != nil {
		return Claims{}, classify(err)
	}
	if claims.Type != v.typ {
		return Claims{}, ErrTokenType
	}
	return claims, nil
}

func (v *EdDSAVerifier) key(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	pub, err := v.keys.lookup(kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
	}
	return pub, nil
}

// classify maps golang-jwt's error chain onto the package sentinels.
func classify(err error) error {
	for _, m := range []struct{ from, to error }{
		{ErrUnknownKID, ErrUnknownKID},
		{jwt.ErrTokenSignatureInvalid, ErrInvalidSig},
		{jwt.ErrTokenInvalidIssuer, ErrIssuer},
		{jwt.ErrTokenInvalidAudience, ErrAudience},
		{jwt.ErrTokenExpired, ErrExpired},
		{jwt.ErrTokenRequiredClaimMissing, ErrExpired},
		{jwt.ErrTokenNotValidYet, ErrNotYetValid},
		{jwt.ErrTokenUsedBeforeIssued, ErrNotYetValid},
	} {
		if errors.Is(err, m.from) {
			return m.to
		}
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
