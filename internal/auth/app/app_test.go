package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Issuer:               "https://auth.test",
		DatabaseFile:         ":memory:",
		EphemeralKeys:        true,
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      time.Hour,
		ChallengeTTL:         5 * time.Minute,
		LoginRateLimit:       5,
		LoginRateWindow:      time.Minute,
		GlobalRateLimit:      100,
		GlobalRateWindow:     15 * time.Minute,
		Port:                 0,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Minute,
	}
	a, err := New(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give the listener a moment before asking it to stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.Error(t, a.db.Ping(context.Background()), "store is closed after Run")
}
