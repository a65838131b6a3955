package app

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/aussiebroadwan/siteauth/pkg/jwtx"
)

// masterKeySize is the length of the secret the TOTP sealer is keyed from.
const masterKeySize = 32

// ErrSharedSigningKey is returned when the access and refresh keys are the
// same key pair.
var ErrSharedSigningKey = errors.New("access and refresh tokens must be signed with different keys")

// InitAuthKeys loads (or creates) the two token signing keys.
//
// Key modes:
//   - files (default): each key is a PKCS8 PEM file generated on first start.
//     Tokens survive restarts.
//   - ephemeral: keys are generated in memory. Every token becomes invalid
//     when the service restarts.
func InitAuthKeys(cfg Config, now func() time.Time, logger *slog.Logger) (access, refresh *jwtx.KeyManager, err error) {
	accessOpts := jwtx.KeyManagerOptions{
		Issuer:    cfg.Issuer,
		Audience:  []string{service.AccessAudience},
		TokenType: jwtx.TypeAccess,
		Now:       now,
	}
	refreshOpts := jwtx.KeyManagerOptions{
		Issuer:    cfg.Issuer,
		Audience:  []string{service.RefreshAudience},
		TokenType: jwtx.TypeRefresh,
		Now:       now,
	}

	if cfg.EphemeralKeys {
		if access, err = jwtx.NewEphemeralKeyManager(accessOpts); err != nil {
			return nil, nil, fmt.Errorf("generate access key: %w", err)
		}
		if refresh, err = jwtx.NewEphemeralKeyManager(refreshOpts); err != nil {
			return nil, nil, fmt.Errorf("generate refresh key: %w", err)
		}
		logger.Warn("using ephemeral signing keys; all tokens become invalid on restart")
	} else {
		if access, err = loadKeyManager(accessOpts, cfg.AccessKeyFile); err != nil {
			return nil, nil, fmt.Errorf("load access key: %w", err)
		}
		if refresh, err = loadKeyManager(refreshOpts, cfg.RefreshKeyFile); err != nil {
			return nil, nil, fmt.Errorf("load refresh key: %w", err)
		}
		logger.Info("signing keys loaded",
			slog.String("access_key_file", cfg.AccessKeyFile),
			slog.String("refresh_key_file", cfg.RefreshKeyFile),
		)
	}

	if access.SharesKeyWith(refresh) {
		return nil, nil, ErrSharedSigningKey
	}

	logger.Info("token signing ready",
		slog.String("issuer", cfg.Issuer),
		slog.String("access_kid", access.Signer.KID()),
		slog.String("refresh_kid", refresh.Signer.KID()),
	)
	return access, refresh, nil
}

func loadKeyManager(opts jwtx.KeyManagerOptions, path string) (*jwtx.KeyManager, error) {
	pemKey, err := cryptox.LoadOrCreateEd25519Key(path)
	if err != nil {
		return nil, err
	}
	return jwtx.NewKeyManagerFromPEM(opts, pemKey)
}

// InitSealer builds the sealer for TOTP secrets at rest. In ephemeral mode
// the master key is random and sealed secrets are lost on restart.
func InitSealer(cfg Config, logger *slog.Logger) (*cryptox.Sealer, error) {
	var (
		key []byte
		err error
	)
	if cfg.EphemeralKeys {
		key = make([]byte, masterKeySize)
		if _, err = rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate master key: %w", err)
		}
		logger.Warn("using an ephemeral master key; enrolled two-factor secrets become unreadable on restart")
	} else {
		if key, err = cryptox.LoadOrCreateSecretFile(cfg.MasterKeyFile, masterKeySize); err != nil {
			return nil, fmt.Errorf("load master key: %w", err)
		}
	}
	return cryptox.NewSealer(key)
}
