package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
)

type loginAttemptsRepo struct {
	db querier
}

func (r *loginAttemptsRepo) RecordLoginAttempt(ctx context.Context, a domain.LoginAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_attempts (id, email, ip, success, stage, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.IP, a.Success, a.Stage, toMillis(a.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *loginAttemptsRepo) CountLoginAttemptsSince(ctx context.Context, since time.Time) (total, failed int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		FROM login_attempts WHERE created_at >= ?`,
		toMillis(since),
	).Scan(&total, &failed)
	return total, failed, err
}

func (r *loginAttemptsRepo) ListLoginAttemptsByEmail(ctx context.Context, email string, limit int) ([]domain.LoginAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, ip, success, stage, created_at
		FROM login_attempts WHERE email = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		email, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoginAttempt
	for rows.Next() {
		var (
			a       domain.LoginAttempt
			created int64
		)
		if err := rows.Scan(&a.ID, &a.Email, &a.IP, &a.Success, &a.Stage, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
