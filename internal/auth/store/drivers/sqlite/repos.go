package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/siteauth/internal/auth/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repos binds every repository to one querier.
type repos struct {
	q querier
}

func (r repos) Users() store.Users                 { return &usersRepo{db: r.q} }
func (r repos) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{db: r.q} }
func (r repos) LoginAttempts() store.LoginAttempts { return &loginAttemptsRepo{db: r.q} }

func (r repos) TwoFactorChallenges() store.TwoFactorChallenges {
	return &challengesRepo{db: r.q}
}

func (r repos) OAuthStates() store.OAuthStates { return &oauthStatesRepo{db: r.q} }
