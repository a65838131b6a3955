package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
)

func TestLedger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newHarness(t)
	u := h.register(t, "grace@example.com", strongPassword)

	issue := func() domain.IssuedToken {
		tok, err := h.tokens.IssueRefreshToken(u)
		require.NoError(t, err)
		require.NoError(t, h.ledger.Record(ctx, u.ID, tok))
		return tok
	}

	first := issue()
	row, err := h.ledger.Lookup(ctx, first.Token)
	require.NoError(t, err)
	require.Equal(t, u.ID, row.UserID)
	require.NotEqual(t, first.Token, row.TokenHash)

	_, err = h.ledger.Lookup(ctx, "never-issued")
	require.ErrorIs(t, err, ErrInvalidToken)

	t.Run("revoke is idempotent", func(t *testing.T) {
		require.NoError(t, h.ledger.Revoke(ctx, first.Token))
		require.NoError(t, h.ledger.Revoke(ctx, first.Token))
		_, err := h.ledger.Lookup(ctx, first.Token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("revoke all", func(t *testing.T) {
		issue()
		issue()
		n, err := h.ledger.RevokeAll(ctx, u.ID)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)
	})

	t.Run("expired row is not live", func(t *testing.T) {
		tok := issue()
		h.clock.Advance(7*24*time.Hour + time.Second)
		_, err := h.ledger.Lookup(ctx, tok.Token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
