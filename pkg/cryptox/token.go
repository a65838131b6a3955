package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// OpaqueTokenBytes is the amount of entropy behind every opaque token.
const OpaqueTokenBytes = 32

var tokenEncoding = base64.RawURLEncoding

// NewOpaqueToken draws OpaqueTokenBytes from crypto/rand and returns
// them base64url encoded without padding.
func NewOpaqueToken() (string, error) {
	return opaqueTokenFrom(rand.Reader)
}

func opaqueTokenFrom(src io.Reader) (string, error) {
	var raw [OpaqueTokenBytes]byte
	if _, err := io.ReadFull(src, raw[:]); err != nil {
		return "", fmt.Errorf("cryptox: read token entropy: %w", err)
	}
	return tokenEncoding.EncodeToString(raw[:]), nil
}

// FingerprintToken is the lookup key for an opaque or refresh token.
// Only fingerprints are persisted.
func FingerprintToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return tokenEncoding.EncodeToString(digest[:])
}
