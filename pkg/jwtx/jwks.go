package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

const (
	ktyOKP       = "OKP"
	crvEd25519   = "Ed25519"
	useSignature = "sig"
)

// JWK is a public key as published at /.well-known/jwks.json.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
}

// JWKS is the document served to relying parties.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

func ed25519JWK(kid string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: ktyOKP,
		Crv: crvEd25519,
		Use: useSignature,
		Alg: AlgorithmEdDSA,
		Kid: kid,
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}

// PublicKey decodes the "x" member. Only OKP/Ed25519 keys are understood.
func (j JWK) PublicKey() (ed25519.PublicKey, error) {
	if j.Kty != ktyOKP || j.Crv != crvEd25519 {
		return nil, fmt.Errorf("jwtx: unsupported key %s/%s", j.Kty, j.Crv)
	}

	raw, err := base64.RawURLEncoding.DecodeString(j.X)
	if err != nil {
		return nil, fmt.Errorf("jwtx: decode x: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("jwtx: Ed25519 key is %d bytes", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// PEM renders the key as a PKIX PUBLIC KEY block.
func (j JWK) PEM() (string, error) {
	pub, err := j.PublicKey()
	if err != nil {
		return "", err
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
