package jwtx

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
)

// AlgorithmEdDSA is the only signing algorithm in use.
const AlgorithmEdDSA = "EdDSA"

// KeyManager pairs the signer and verifier for one token kind. Access and
// refresh tokens each get their own KeyManager so neither can be replayed
// as the other.
type KeyManager struct {
	Signer   Signer
	Verifier Verifier
	KeySet   *KeySet
}

// KeyManagerOptions configures a KeyManager.
type KeyManagerOptions struct {
	// Issuer checked on verification ("iss").
	Issuer string

	// Audience tokens must carry ("aud").
	Audience []string

	// TokenType is the "typ" claim this manager signs and accepts.
	TokenType string

	// Now is the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// NewEphemeralKeyManager creates a KeyManager with a fresh in-memory key.
// Every token it signed becomes unverifiable when the process exits.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	pemKey, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	return NewKeyManagerFromPEM(opts, pemKey)
}

// NewKeyManagerFromPEM creates a KeyManager from a PKCS8 Ed25519 key. The
// kid is "<type>-<thumbprint>" so it stays stable across restarts.
func NewKeyManagerFromPEM(opts KeyManagerOptions, pemKey []byte) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}
	if opts.TokenType == "" {
		return nil, fmt.Errorf("jwtx: TokenType is required")
	}

	priv, err := cryptox.ParseEd25519PEM(pemKey)
	if err != nil {
		return nil, err
	}
	pub := priv.Public().(ed25519.PublicKey)
	kid := opts.TokenType + "-" + thumbprint(pub)

	keys, err := newKeySet(ed25519JWK(kid, pub))
	if err != nil {
		return nil, err
	}

	return &KeyManager{
		Signer:   &ed25519Signer{kid: kid, priv: priv},
		Verifier: NewVerifierEdDSA(keys, opts.Issuer, opts.Audience, opts.TokenType, opts.Now),
		KeySet:   keys,
	}, nil
}

// IsReady reports whether the manager has a verification key.
func (km *KeyManager) IsReady() bool {
	return km != nil && km.KeySet.IsReady()
}

// SharesKeyWith reports whether two managers sign with the same key pair.
func (km *KeyManager) SharesKeyWith(other *KeyManager) bool {
	return km.Signer.PublicJWK().X == other.Signer.PublicJWK().X
}

func thumbprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}
