package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrCreateSecretFile reads a base64url secret from path, creating the
// file with size fresh random bytes when it does not exist yet. The parent
// directory is created with 0750 and the file with 0600.
func LoadOrCreateSecretFile(path string, size int) ([]byte, error) {
	if path == "" {
		return nil, errors.New("cryptox: secret file path is empty")
	}
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		secret, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("cryptox: decode %s: %w", path, err)
		}
		if len(secret) < size {
			return nil, fmt.Errorf("cryptox: %s holds %d bytes, want at least %d", path, len(secret), size)
		}
		return secret, nil

	case errors.Is(err, os.ErrNotExist):
		secret := make([]byte, size)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("cryptox: generate secret: %w", err)
		}
		if err := writeNewFile(path, []byte(base64.RawURLEncoding.EncodeToString(secret))); err != nil {
			return nil, err
		}
		return secret, nil

	default:
		return nil, fmt.Errorf("cryptox: read %s: %w", path, err)
	}
}

// writeNewFile creates path exclusively so two processes racing on first
// start cannot both write different secrets.
func writeNewFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("cryptox: create dir for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("cryptox: create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("cryptox: write %s: %w", path, err)
	}
	return f.Close()
}
