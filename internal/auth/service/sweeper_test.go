package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
)

func TestSweeperSweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newHarness(t)
	a := h.register(t, "a@x.com", strongPassword)
	h.register(t, "b@x.com", strongPassword)
	h.enableTwoFactor(t, a.ID)

	_, err := h.gateway.Login(ctx, "a@x.com", strongPassword, "192.0.2.1") // challenge, 5m
	require.NoError(t, err)
	_, err = h.gateway.Login(ctx, "b@x.com", strongPassword, "192.0.2.1") // refresh token, 7d
	require.NoError(t, err)
	require.NoError(t, h.store.OAuthStates().CreateOAuthState(ctx, domain.OAuthState{
		ID: "state-1", Provider: ProviderGitHub, StateHash: "hash-1",
		ExpiresAt: h.clock.Now().Add(DefaultSocialStateTTL), CreatedAt: h.clock.Now(),
	}))

	sw := &Sweeper{Store: h.store, Logger: discardLogger(), Now: h.clock.Now}

	require.Equal(t, SweepResult{}, sw.Sweep(ctx))

	h.clock.Advance(10 * time.Minute)
	require.Equal(t, SweepResult{Challenges: 1, OAuthStates: 1}, sw.Sweep(ctx))

	h.clock.Advance(7 * 24 * time.Hour)
	require.Equal(t, SweepResult{RefreshTokens: 1}, sw.Sweep(ctx))

	total, _, err := h.store.LoginAttempts().CountLoginAttemptsSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, total, "login attempts are never purged")
}

func TestSweeperRunStopsWithContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	sw := &Sweeper{Store: h.store, Logger: discardLogger(), Now: h.clock.Now}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
