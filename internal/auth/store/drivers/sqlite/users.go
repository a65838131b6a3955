package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
)

type usersRepo struct {
	db querier
}

const userColumns = `id, email, password_hash, first_name, last_name, role, active,
	email_verified, two_factor_secret, two_factor_enabled, created_at, updated_at, last_login_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u         domain.User
		role      string
		secret    sql.NullString
		created   int64
		updated   int64
		lastLogin sql.NullInt64
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &u.Active,
		&u.EmailVerified, &secret, &u.TwoFactorEnabled, &created, &updated, &lastLogin,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.TwoFactorSecret = mapNullStringPtr(secret)
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	u.LastLoginAt = fromNullMillis(lastLogin)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var lastLogin sql.NullInt64
	if u.LastLoginAt != nil {
		lastLogin = sql.NullInt64{Int64: toMillis(*u.LastLoginAt), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role), u.Active,
		u.EmailVerified, mapOptionalString(u.TwoFactorSecret), u.TwoFactorEnabled,
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt), lastLogin,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate, now time.Time) error {
	var first, last sql.NullString
	if upd.FirstName != nil {
		first = sql.NullString{String: *upd.FirstName, Valid: true}
	}
	if upd.LastName != nil {
		last = sql.NullString{String: *upd.LastName, Valid: true}
	}
	return requireAffected(r.db.ExecContext(ctx, `
		UPDATE users
		SET first_name = COALESCE(?, first_name),
		    last_name  = COALESCE(?, last_name),
		    updated_at = ?
		WHERE id = ?`,
		first, last, toMillis(now), id,
	))
}

func (r *usersRepo) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET active = ?, updated_at = ? WHERE id = ?`,
		active, toMillis(now), id,
	))
}

func (r *usersRepo) SetRole(ctx context.Context, id string, role domain.Role, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), toMillis(now), id,
	))
}

func (r *usersRepo) SetTwoFactor(ctx context.Context, id string, secret *string, enabled bool, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET two_factor_secret = ?, two_factor_enabled = ?, updated_at = ? WHERE id = ?`,
		mapOptionalString(secret), enabled, toMillis(now), id,
	))
}

func (r *usersRepo) SetPendingTwoFactor(ctx context.Context, id, secret string, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_secret = ?, updated_at = ?
		WHERE id = ? AND two_factor_enabled = 0`,
		secret, toMillis(now), id,
	))
}

func (r *usersRepo) EnableTwoFactor(ctx context.Context, id, expectedSecret string, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_enabled = 1, updated_at = ?
		WHERE id = ? AND two_factor_secret = ? AND two_factor_enabled = 0`,
		toMillis(now), id, expectedSecret,
	))
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`,
		toMillis(at), id,
	))
}

// escapeLike escapes the LIKE wildcards in s using '\' as the escape char.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *usersRepo) ListUsers(ctx context.Context, f domain.UserFilter) (domain.UserPage, error) {
	where := ""
	var args []any
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		where = ` WHERE email LIKE ? ESCAPE '\' OR first_name LIKE ? ESCAPE '\' OR last_name LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern, pattern)
	}

	var page domain.UserPage
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&page.Total); err != nil {
		return domain.UserPage{}, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return domain.UserPage{}, err
	}
	defer rows.Close()

	page.Users = make([]domain.User, 0, max(f.Limit, 0))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return domain.UserPage{}, err
		}
		page.Users = append(page.Users, u)
	}
	return page, rows.Err()
}

func (r *usersRepo) CountUsers(ctx context.Context, since time.Time) (domain.Stats, error) {
	var st domain.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(active), 0),
			COALESCE(SUM(CASE WHEN role = 'admin' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(two_factor_enabled), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM users`,
		toMillis(since),
	).Scan(&st.TotalUsers, &st.ActiveUsers, &st.AdminUsers, &st.TwoFactorUsers, &st.NewUsersToday)
	if err != nil {
		return domain.Stats{}, err
	}
	return st, nil
}
