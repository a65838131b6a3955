package authsdk

import (
	"context"
	"net/http"
)

// GenerateTwoFactor starts enrolment. The secret is returned only here.
func (s *Session) GenerateTwoFactor(ctx context.Context) (*TwoFactorGenerateResponse, error) {
	var out TwoFactorGenerateResponse
	if err := s.call(ctx, http.MethodPost, "/api/auth/2fa/generate", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnableTwoFactor confirms enrolment with a code from the authenticator app.
func (s *Session) EnableTwoFactor(ctx context.Context, code string) error {
	req := TwoFactorEnableRequest{Code: code}
	return s.call(ctx, http.MethodPost, "/api/auth/2fa/enable", req, nil, http.StatusOK)
}

// DisableTwoFactor turns the second factor off. The current password is required.
func (s *Session) DisableTwoFactor(ctx context.Context, password string) error {
	req := TwoFactorDisableRequest{Password: password}
	return s.call(ctx, http.MethodPost, "/api/auth/2fa/disable", req, nil, http.StatusOK)
}

// TwoFactorQRCode returns the provisioning URI as a PNG image.
func (s *Session) TwoFactorQRCode(ctx context.Context) ([]byte, error) {
	var png []byte
	err := s.Do(ctx, func(ctx context.Context, token string) error {
		body, err := s.client.exchange(ctx, http.MethodGet, "/api/auth/2fa/qr-code", token, nil, http.StatusOK)
		if err != nil {
			return err
		}
		png = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return png, nil
}
