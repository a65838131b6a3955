package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/store"
	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/aussiebroadwan/siteauth/pkg/idx"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
)

const (
	// MaxTwoFactorAttempts is how many wrong codes a challenge survives.
	MaxTwoFactorAttempts = 5

	DefaultChallengeTTL = 5 * time.Minute
)

// Gateway is the login state machine. It owns no state of its own; every
// transition is persisted through the store.
type Gateway struct {
	Store        store.Store
	Users        *UserService
	Tokens       *TokenIssuer
	Ledger       *LedgerService
	TwoFactor    *TwoFactorService
	ChallengeTTL time.Duration
	Now          Clock

	dummyOnce sync.Once
	dummyHash string
}

// Register creates an account. No tokens are issued.
func (g *Gateway) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	return g.Users.Register(ctx, in)
}

// Login checks email and password. With 2FA enabled it stops at a challenge
// token; otherwise it issues a token pair. Unknown email and wrong password
// are indistinguishable to the caller.
func (g *Gateway) Login(ctx context.Context, email, password, ip string) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)
	email = NormalizeEmail(email)

	user, err := g.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, fmt.Errorf("lookup user: %w", err)
		}
		g.burnPasswordCheck(password)
		g.recordAttempt(ctx, email, ip, false, domain.StagePassword)
		l.Info("login failed: unknown email")
		return domain.LoginResult{}, ErrInvalidCredential
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		g.recordAttempt(ctx, email, ip, false, domain.StagePassword)
		l.Info("login failed: wrong password", slog.String("user_id", user.ID))
		return domain.LoginResult{}, ErrInvalidCredential
	}

	if !user.Active {
		g.recordAttempt(ctx, email, ip, false, domain.StagePassword)
		l.Info("login failed: account disabled", slog.String("user_id", user.ID))
		return domain.LoginResult{}, ErrAccountDisabled
	}

	if user.TwoFactorEnabled {
		token, expiresAt, err := g.openChallenge(ctx, user)
		if err != nil {
			return domain.LoginResult{}, err
		}
		g.recordAttempt(ctx, email, ip, true, domain.StagePassword)
		l.Info("login awaiting second factor", slog.String("user_id", user.ID))
		return domain.LoginResult{User: &user, ChallengeToken: token, ChallengeExpiresAt: expiresAt}, nil
	}

	pair, err := g.issuePair(ctx, user, nil)
	if err != nil {
		return domain.LoginResult{}, err
	}
	g.recordAttempt(ctx, email, ip, true, domain.StagePassword)
	l.Info("login succeeded", slog.String("user_id", user.ID))
	return domain.LoginResult{User: &user, Tokens: pair}, nil
}

// CompleteTwoFactor exchanges a challenge token plus a valid code for a
// token pair. A wrong code keeps the challenge usable until it expires or
// MaxTwoFactorAttempts is reached.
func (g *Gateway) CompleteTwoFactor(ctx context.Context, challengeToken, code, ip string) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)
	now := g.Now.now()

	if challengeToken == "" {
		return domain.LoginResult{}, ErrInvalidChallenge
	}
	ch, err := g.Store.TwoFactorChallenges().GetChallengeByHash(ctx, cryptox.FingerprintToken(challengeToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, ErrInvalidChallenge
		}
		return domain.LoginResult{}, fmt.Errorf("lookup challenge: %w", err)
	}
	if !now.Before(ch.ExpiresAt) {
		g.dropChallenge(ctx, ch.ID)
		return domain.LoginResult{}, ErrInvalidChallenge
	}

	user, err := g.Store.Users().GetUserByID(ctx, ch.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, ErrInvalidChallenge
		}
		return domain.LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Active {
		g.dropChallenge(ctx, ch.ID)
		g.recordAttempt(ctx, user.Email, ip, false, domain.StageTwoFactor)
		return domain.LoginResult{}, ErrAccountDisabled
	}
	if !user.TwoFactorEnabled {
		// Disabled while the challenge was pending; start over.
		g.dropChallenge(ctx, ch.ID)
		return domain.LoginResult{}, ErrInvalidChallenge
	}

	if err := g.TwoFactor.Verify(user, code); err != nil {
		if !errors.Is(err, ErrInvalidCode) {
			return domain.LoginResult{}, err
		}
		g.recordAttempt(ctx, user.Email, ip, false, domain.StageTwoFactor)

		attempts, incErr := g.Store.TwoFactorChallenges().IncrementChallengeAttempts(ctx, ch.ID)
		if incErr != nil && !errors.Is(incErr, store.ErrNotFound) {
			l.Error("failed to count two-factor attempt", slog.Any("error", incErr))
		}
		if attempts >= MaxTwoFactorAttempts {
			l.Warn("two-factor challenge exhausted", slog.String("user_id", user.ID))
			g.dropChallenge(ctx, ch.ID)
		}
		return domain.LoginResult{}, ErrInvalidCode
	}

	pair, err := g.issuePair(ctx, user, &ch)
	if err != nil {
		return domain.LoginResult{}, err
	}
	g.recordAttempt(ctx, user.Email, ip, true, domain.StageTwoFactor)
	l.Info("two-factor login succeeded", slog.String("user_id", user.ID))
	return domain.LoginResult{User: &user, Tokens: pair}, nil
}

// Refresh mints a new access token for a refresh token that both verifies
// and is still in the ledger. The refresh token itself is not rotated.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (domain.IssuedToken, error) {
	l := slogx.FromContext(ctx)

	claims, err := g.Tokens.Verify(ctx, KindRefresh, refreshToken)
	if err != nil {
		if rerr := g.Ledger.Revoke(ctx, refreshToken); rerr != nil {
			l.Error("failed to drop unverifiable refresh token", slog.Any("error", rerr))
		}
		return domain.IssuedToken{}, ErrInvalidToken
	}

	rt, err := g.Ledger.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			l.Info("refresh rejected: token not in ledger", slog.String("user_id", claims.Subject))
		}
		return domain.IssuedToken{}, err
	}
	if rt.UserID != claims.Subject {
		l.Warn("refresh rejected: ledger owner mismatch", slog.String("user_id", claims.Subject))
		return domain.IssuedToken{}, ErrInvalidToken
	}

	user, err := g.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.IssuedToken{}, ErrInvalidToken
		}
		return domain.IssuedToken{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Active {
		if _, err := g.Ledger.RevokeAll(ctx, user.ID); err != nil {
			l.Error("failed to revoke tokens of disabled user", slog.Any("error", err))
		}
		l.Info("refresh rejected: account disabled", slog.String("user_id", user.ID))
		return domain.IssuedToken{}, ErrInvalidToken
	}

	return g.Tokens.IssueAccessToken(user)
}

// Logout revokes a refresh token belonging to userID. Unknown, already
// revoked and foreign tokens are fine; logging out twice succeeds twice.
func (g *Gateway) Logout(ctx context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	revoked, err := g.Ledger.RevokeOwned(ctx, userID, refreshToken)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if !revoked {
		slogx.FromContext(ctx).Debug("logout: no refresh token of caller revoked", slog.String("user_id", userID))
	}
	return nil
}

// LogoutAll revokes every refresh token and pending challenge of userID.
func (g *Gateway) LogoutAll(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := g.Store.WithTx(ctx, func(tx store.Repos) error {
		var err error
		if n, err = tx.RefreshTokens().DeleteRefreshTokensByUser(ctx, userID); err != nil {
			return err
		}
		return tx.TwoFactorChallenges().DeleteChallengesByUser(ctx, userID)
	})
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}
	slogx.FromContext(ctx).Info("all sessions revoked", slog.String("user_id", userID), slog.Int64("count", n))
	return n, nil
}

// issuePair signs both tokens and, in one transaction, records the refresh
// token, stamps last login and consumes ch if given. Losing the race for ch
// yields ErrInvalidChallenge and nothing is recorded.
func (g *Gateway) issuePair(ctx context.Context, user domain.User, ch *domain.TwoFactorChallenge) (*domain.TokenPair, error) {
	access, err := g.Tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := g.Tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}

	err = g.Store.WithTx(ctx, func(tx store.Repos) error {
		if ch != nil {
			if err := tx.TwoFactorChallenges().DeleteChallenge(ctx, ch.ID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrInvalidChallenge
				}
				return err
			}
		}
		if err := g.Ledger.record(ctx, tx, user.ID, refresh); err != nil {
			return err
		}
		return tx.Users().TouchLastLogin(ctx, user.ID, g.Now.now())
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{Access: access, Refresh: refresh}, nil
}

func (g *Gateway) openChallenge(ctx context.Context, user domain.User) (string, time.Time, error) {
	token, err := cryptox.NewOpaqueToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate challenge: %w", err)
	}

	ttl := g.ChallengeTTL
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	now := g.Now.now()
	ch := domain.TwoFactorChallenge{
		ID:        idx.NewAt(now).String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := g.Store.TwoFactorChallenges().CreateChallenge(ctx, ch); err != nil {
		return "", time.Time{}, fmt.Errorf("store challenge: %w", err)
	}
	return token, ch.ExpiresAt, nil
}

func (g *Gateway) dropChallenge(ctx context.Context, id string) {
	err := g.Store.TwoFactorChallenges().DeleteChallenge(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Error("failed to delete challenge", slog.Any("error", err))
	}
}

// recordAttempt appends to the audit log. A failure here is logged and
// does not change the login outcome.
func (g *Gateway) recordAttempt(ctx context.Context, email, ip string, success bool, stage string) {
	now := g.Now.now()
	err := g.Store.LoginAttempts().RecordLoginAttempt(ctx, domain.LoginAttempt{
		ID:        idx.NewAt(now).String(),
		Email:     email,
		IP:        ip,
		Success:   success,
		Stage:     stage,
		CreatedAt: now,
	})
	if err != nil {
		slogx.FromContext(ctx).Error("failed to record login attempt", slog.Any("error", err))
	}
}

// burnPasswordCheck spends the same Argon2 work as a real comparison so
// an unknown email answers no faster than a wrong password.
func (g *Gateway) burnPasswordCheck(password string) {
	g.dummyOnce.Do(func() {
		g.dummyHash, _ = cryptox.HashPassword("dummy-password-for-timing")
	})
	if g.dummyHash != "" {
		_ = cryptox.VerifyPassword(password, g.dummyHash)
	}
}
