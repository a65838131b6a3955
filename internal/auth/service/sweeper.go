package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/store"
)

// DefaultSweepInterval is used when Sweeper.Interval is not positive.
const DefaultSweepInterval = 10 * time.Minute

// SweepResult counts the rows removed by one Sweep.
type SweepResult struct {
	RefreshTokens int64
	Challenges    int64
	OAuthStates   int64
}

// Sweeper purges refresh tokens, two-factor challenges and social login
// states past their expiry. The login attempt log is append-only and never swept.
type Sweeper struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      Clock
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	every := s.Interval
	if every <= 0 {
		every = DefaultSweepInterval
	}
	s.Logger.Info("sweeper started", slog.Duration("interval", every))
	defer s.Logger.Info("sweeper stopped")

	tick := time.NewTicker(every)
	defer tick.Stop()

	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

// Sweep deletes expired rows. Each table is handled independently so a
// failure on one is logged and the rest still get purged.
func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	cutoff := s.Now.now()
	var res SweepResult
	var err error

	if res.RefreshTokens, err = s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, cutoff); err != nil {
		s.Logger.Error("sweep refresh tokens", slog.Any("error", err))
	}
	if res.Challenges, err = s.Store.TwoFactorChallenges().DeleteExpiredChallenges(ctx, cutoff); err != nil {
		s.Logger.Error("sweep two-factor challenges", slog.Any("error", err))
	}
	if res.OAuthStates, err = s.Store.OAuthStates().DeleteExpiredOAuthStates(ctx, cutoff); err != nil {
		s.Logger.Error("sweep oauth states", slog.Any("error", err))
	}

	if res != (SweepResult{}) {
		s.Logger.Info("sweep removed expired rows",
			slog.Int64("refresh_tokens", res.RefreshTokens),
			slog.Int64("challenges", res.Challenges),
			slog.Int64("oauth_states", res.OAuthStates),
		)
	}
	return res
}
