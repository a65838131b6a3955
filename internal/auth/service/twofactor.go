package service

import (
	"bytes"
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"image/png"
	"log/slog"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/store"
	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSkew       = 1
	totpSecretSize = 20
	qrCodeSize     = 256

	// DefaultTOTPIssuer is the label authenticator apps show next to the account.
	DefaultTOTPIssuer = "Vulsoft"
)

var totpValidateOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      totpSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TwoFactorService is the Two-Factor Verifier. Secrets are sealed before
// they reach the store and a secret only gates login once confirmed.
type TwoFactorService struct {
	Store  store.Store
	Sealer *cryptox.Sealer
	Issuer string
	Now    Clock
}

func (s *TwoFactorService) issuer() string {
	if s.Issuer == "" {
		return DefaultTOTPIssuer
	}
	return s.Issuer
}

// Generate creates a fresh secret for userID and stores it sealed and not
// yet enabled. Calling it again before Enable replaces the pending secret.
func (s *TwoFactorService) Generate(ctx context.Context, userID string) (domain.TwoFactorEnrollment, error) {
	l := slogx.FromContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return domain.TwoFactorEnrollment{}, err
	}
	if user.TwoFactorEnabled {
		return domain.TwoFactorEnrollment{}, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer(),
		AccountName: user.Email,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("generate totp key: %w", err)
	}

	sealed, err := s.Sealer.Seal(key.Secret())
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("seal totp secret: %w", err)
	}
	// An Enable that slipped in after loadUser wins.
	if err := s.Store.Users().SetPendingTwoFactor(ctx, user.ID, sealed, s.Now.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TwoFactorEnrollment{}, ErrTwoFactorAlreadyEnabled
		}
		return domain.TwoFactorEnrollment{}, fmt.Errorf("store totp secret: %w", err)
	}

	l.Info("two-factor secret generated", slog.String("user_id", user.ID))
	return domain.TwoFactorEnrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// QRCode renders the provisioning URI of the user's stored secret as a PNG.
func (s *TwoFactorService) QRCode(ctx context.Context, userID string) ([]byte, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorSecret == nil {
		return nil, ErrTwoFactorNotInitialised
	}
	secret, err := s.Sealer.Open(*user.TwoFactorSecret)
	if err != nil {
		return nil, fmt.Errorf("open totp secret: %w", err)
	}
	raw, err := b32NoPadding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode totp secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer(),
		AccountName: user.Email,
		Period:      totpPeriod,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild totp key: %w", err)
	}
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return buf.Bytes(), nil
}

// Enable confirms the pending secret with code and switches 2FA on. A
// concurrent Generate that replaced the secret makes this fail with
// ErrInvalidCode rather than enabling a secret the user never saw.
func (s *TwoFactorService) Enable(ctx context.Context, userID, code string) error {
	l := slogx.FromContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == nil {
		return ErrTwoFactorNotInitialised
	}
	if err := s.check(*user.TwoFactorSecret, code); err != nil {
		l.Info("two-factor enable rejected", slog.String("user_id", user.ID))
		return err
	}

	err = s.Store.Users().EnableTwoFactor(ctx, user.ID, *user.TwoFactorSecret, s.Now.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}

	l.Info("two-factor enabled", slog.String("user_id", user.ID))
	return nil
}

// Verify checks code against the user's enabled secret.
func (s *TwoFactorService) Verify(user domain.User, code string) error {
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return ErrTwoFactorNotEnabled
	}
	return s.check(*user.TwoFactorSecret, code)
}

// Disable clears the secret after re-confirming the password.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password string) error {
	l := slogx.FromContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("two-factor disable rejected: bad password", slog.String("user_id", user.ID))
		return ErrInvalidCredential
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	if err := s.Store.Users().SetTwoFactor(ctx, user.ID, nil, false, s.Now.now()); err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}
	l.Info("two-factor disabled", slog.String("user_id", user.ID))
	return nil
}

func (s *TwoFactorService) check(sealed, code string) error {
	secret, err := s.Sealer.Open(sealed)
	if err != nil {
		return fmt.Errorf("open totp secret: %w", err)
	}
	ok, err := totp.ValidateCustom(code, secret, s.Now.now(), totpValidateOpts)
	if err != nil || !ok {
		return ErrInvalidCode
	}
	return nil
}

func (s *TwoFactorService) loadUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidToken
		}
		return domain.User{}, err
	}
	if !user.Active {
		return domain.User{}, ErrAccountDisabled
	}
	return user, nil
}
