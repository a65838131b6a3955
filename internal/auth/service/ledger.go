package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/store"
	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/aussiebroadwan/siteauth/pkg/idx"
)

// LedgerService is the Session/Refresh Ledger. A refresh token is honoured
// only while its row exists, regardless of what its signature says.
type LedgerService struct {
	Store store.Store
	Now   Clock
}

// Record stores the fingerprint of a newly issued refresh token.
func (s *LedgerService) Record(ctx context.Context, userID string, token domain.IssuedToken) error {
	return s.record(ctx, s.Store, userID, token)
}

// record is Record against an explicit store so callers can run it inside
// their own transaction.
func (s *LedgerService) record(ctx context.Context, st store.Repos, userID string, token domain.IssuedToken) error {
	now := s.Now.now()
	err := st.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(token.Token),
		ExpiresAt: token.ExpiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("record refresh token: %w", err)
	}
	return nil
}

// Lookup returns the live ledger row for token. Missing and expired rows are
// both ErrInvalidToken.
func (s *LedgerService) Lookup(ctx context.Context, token string) (domain.RefreshToken, error) {
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RefreshToken{}, ErrInvalidToken
		}
		return domain.RefreshToken{}, err
	}
	if !s.Now.now().Before(rt.ExpiresAt) {
		return domain.RefreshToken{}, ErrInvalidToken
	}
	return rt, nil
}

// Revoke deletes the row for token. Revoking an unknown token is not an error.
func (s *LedgerService) Revoke(ctx context.Context, token string) error {
	return s.Store.RefreshTokens().DeleteRefreshTokenByHash(ctx, cryptox.FingerprintToken(token))
}

// RevokeOwned is Revoke limited to tokens recorded for userID. It reports
// whether a row was removed; tokens of other users are left alone.
func (s *LedgerService) RevokeOwned(ctx context.Context, userID, token string) (bool, error) {
	hash := cryptox.FingerprintToken(token)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if rt.UserID != userID {
		return false, nil
	}
	if err := s.Store.RefreshTokens().DeleteRefreshTokenByHash(ctx, hash); err != nil {
		return false, err
	}
	return true, nil
}

// RevokeAll deletes every row of userID and reports how many went.
func (s *LedgerService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return s.Store.RefreshTokens().DeleteRefreshTokensByUser(ctx, userID)
}

