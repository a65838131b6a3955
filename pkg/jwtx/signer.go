package jwtx

import (
	"crypto/ed25519"

	"github.com/golang-jwt/jwt/v5"
)

// Signer turns a claim set into a compact JWS.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

// ed25519Signer stamps its kid into the header of every token it signs.
type ed25519Signer struct {
	kid  string
	priv ed25519.PrivateKey
}

func (s *ed25519Signer) Alg() string { return AlgorithmEdDSA }
func (s *ed25519Signer) KID() string { return s.kid }

func (s *ed25519Signer) Sign(c Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	tok.Header["kid"] = s.kid
	return tok.SignedString(s.priv)
}

func (s *ed25519Signer) PublicJWK() JWK {
	return ed25519JWK(s.kid, s.priv.Public().(ed25519.PublicKey))
}
