package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
)

type challengesRepo struct {
	db querier
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.TwoFactorChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO two_factor_challenges (id, user_id, token_hash, attempts, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.TokenHash, c.Attempts, toMillis(c.ExpiresAt), toMillis(c.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *challengesRepo) GetChallengeByHash(ctx context.Context, hash string) (domain.TwoFactorChallenge, error) {
	var (
		c                domain.TwoFactorChallenge
		expires, created int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, attempts, expires_at, created_at
		FROM two_factor_challenges WHERE token_hash = ?`,
		hash,
	).Scan(&c.ID, &c.UserID, &c.TokenHash, &c.Attempts, &expires, &created)
	if err != nil {
		return domain.TwoFactorChallenge{}, mapNotFound(err)
	}
	c.ExpiresAt = fromMillis(expires)
	c.CreatedAt = fromMillis(created)
	return c, nil
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE two_factor_challenges SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`,
		id,
	).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, id string) error {
	return requireAffected(r.db.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE id = ?`, id))
}

func (r *challengesRepo) DeleteChallengesByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE user_id = ?`, userID)
	return err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
