package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
)

type oauthStatesRepo struct {
	db querier
}

func (r *oauthStatesRepo) CreateOAuthState(ctx context.Context, st domain.OAuthState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_states (id, provider, state_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		st.ID, st.Provider, st.StateHash, toMillis(st.ExpiresAt), toMillis(st.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *oauthStatesRepo) ConsumeOAuthState(ctx context.Context, provider, hash string, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE state_hash = ? AND provider = ? AND expires_at > ?`,
		hash, provider, toMillis(now),
	))
}

func (r *oauthStatesRepo) DeleteExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
