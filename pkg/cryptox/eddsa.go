package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const pkcs8BlockType = "PRIVATE KEY"

// GenerateEd25519Key returns a fresh Ed25519 private key as a PKCS8 PEM block.
func GenerateEd25519Key() ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate Ed25519 key: %w", err)
	}
	return encodeEd25519PEM(priv)
}

func encodeEd25519PEM(priv ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKCS8 key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pkcs8BlockType, Bytes: der}), nil
}

// ParseEd25519PEM is the inverse of GenerateEd25519Key. Any other key
// algorithm inside the PKCS8 envelope is rejected.
func ParseEd25519PEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("cryptox: no PEM block found")
	}
	if block.Type != pkcs8BlockType {
		return nil, fmt.Errorf("cryptox: PEM block is %q, want %q", block.Type, pkcs8BlockType)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse PKCS8: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("cryptox: PKCS8 holds %T, not an Ed25519 key", key)
	}
	return priv, nil
}

// LoadOrCreateEd25519Key reads the PEM at path. On first start the file
// does not exist yet, so a key is generated and written with mode 0600.
func LoadOrCreateEd25519Key(path string) ([]byte, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if _, perr := ParseEd25519PEM(data); perr != nil {
			return nil, fmt.Errorf("cryptox: %s: %w", path, perr)
		}
		return data, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("cryptox: read %s: %w", path, err)
	}

	created, err := GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	if err := writeNewFile(path, created); err != nil {
		return nil, err
	}
	return created, nil
}
