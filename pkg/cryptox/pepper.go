package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"sync"
)

// Argon2id parameters.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

var (
	pepperMu   sync.Mutex
	pepper     string
	pepperFile string
)

// SetPepperPath configures the file the pepper is loaded from (or written to
// on first start). Call before the first hash is computed.
func SetPepperPath(file string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	pepperFile = file
	pepper = ""
}

// SetPepper installs a pepper directly. Tests and one-shot tools use it to
// avoid touching the filesystem.
func SetPepper(p string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	pepper = p
}

// GetPepper returns the process pepper, loading it on first use. Without a
// configured path an in-memory pepper is generated, so hashes will not
// verify after a restart.
func GetPepper() (string, error) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper != "" {
		return pepper, nil
	}

	if pepperFile == "" {
		buf := make([]byte, keyLength)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		slog.Warn("no pepper file configured, using an ephemeral pepper")
		pepper = base64.RawURLEncoding.EncodeToString(buf)
		return pepper, nil
	}

	secret, err := LoadOrCreateSecretFile(pepperFile, keyLength)
	if err != nil {
		return "", err
	}
	pepper = base64.RawURLEncoding.EncodeToString(secret)
	return pepper, nil
}
