package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Sealer encrypts small secrets (TOTP shared secrets) with AES-256-GCM so
// they are not readable from a copy of the database.
type Sealer struct {
	aead cipher.AEAD
}

const sealInfo = "siteauth/seal/aes-256-gcm"

// NewSealer derives an AES-256 key from keyMaterial with HKDF-SHA256.
func NewSealer(keyMaterial []byte) (*Sealer, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("cryptox: empty sealing key")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, keyMaterial, nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("cryptox: derive sealing key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns base64url(nonce || ciphertext || tag).
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cryptox: generate nonce: %w", err)
	}

	out := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("cryptox: decode sealed value: %w", err)
	}

	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", errors.New("cryptox: sealed value too short")
	}

	plain, err := s.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", fmt.Errorf("cryptox: open sealed value: %w", err)
	}
	return string(plain), nil
}
