package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/store"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AdminService backs the administrator endpoints. Callers are expected to
// have checked the admin role already.
type AdminService struct {
	Store store.Store
	Now   Clock
}

// ListUsers returns one page (1-based) of users, newest first. Out of range
// paging values are clamped.
func (s *AdminService) ListUsers(ctx context.Context, page, limit int, search string) (domain.UserPage, int, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	res, err := s.Store.Users().ListUsers(ctx, domain.UserFilter{
		Search: search,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return domain.UserPage{}, 0, 0, fmt.Errorf("list users: %w", err)
	}
	return res, page, limit, nil
}

// Stats summarises users and today's (UTC) login activity.
func (s *AdminService) Stats(ctx context.Context) (domain.Stats, error) {
	today := s.Now.now().Truncate(24 * time.Hour)

	st, err := s.Store.Users().CountUsers(ctx, today)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count users: %w", err)
	}
	st.LoginAttemptsToday, st.FailedLoginsToday, err = s.Store.LoginAttempts().CountLoginAttemptsSince(ctx, today)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count login attempts: %w", err)
	}
	return st, nil
}

// SetRole changes the role of targetID. Admins cannot demote themselves.
func (s *AdminService) SetRole(ctx context.Context, actorID, targetID string, role domain.Role) (domain.User, error) {
	if !role.Valid() {
		return domain.User{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if actorID == targetID && role != domain.RoleAdmin {
		return domain.User{}, ErrForbidden
	}

	if err := s.Store.Users().SetRole(ctx, targetID, role, s.Now.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("set role: %w", err)
	}

	slogx.FromContext(ctx).Info("user role changed",
		slog.String("actor_id", actorID),
		slog.String("user_id", targetID),
		slog.String("role", string(role)),
	)
	return s.get(ctx, targetID)
}

// SetActive enables or disables targetID. Disabling also revokes every
// refresh token and pending challenge of the user in the same transaction.
func (s *AdminService) SetActive(ctx context.Context, actorID, targetID string, active bool) (domain.User, error) {
	if actorID == targetID && !active {
		return domain.User{}, ErrForbidden
	}

	var revoked int64
	err := s.Store.WithTx(ctx, func(tx store.Repos) error {
		if err := tx.Users().SetActive(ctx, targetID, active, s.Now.now()); err != nil {
			return err
		}
		if active {
			return nil
		}
		var err error
		if revoked, err = tx.RefreshTokens().DeleteRefreshTokensByUser(ctx, targetID); err != nil {
			return err
		}
		return tx.TwoFactorChallenges().DeleteChallengesByUser(ctx, targetID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("set active: %w", err)
	}

	slogx.FromContext(ctx).Info("user active flag changed",
		slog.String("actor_id", actorID),
		slog.String("user_id", targetID),
		slog.Bool("active", active),
		slog.Int64("revoked_tokens", revoked),
	)
	return s.get(ctx, targetID)
}

func (s *AdminService) get(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}
