package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Repos groups the per-table repositories. Inside WithTx the same
// interface is bound to the open transaction.
type Repos interface {
	Users() Users
	RefreshTokens() RefreshTokens
	LoginAttempts() LoginAttempts
	TwoFactorChallenges() TwoFactorChallenges
	OAuthStates() OAuthStates
}

// Store is the root data access interface.
type Store interface {
	Repos

	ApplyMigrations() error

	// WithTx runs fn in one transaction, committing when fn returns nil
	// and rolling back otherwise. fn must only use the repos it is given.
	WithTx(ctx context.Context, fn func(tx Repos) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Users is the Credential Store.
type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u. A taken email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile applies the non-nil fields of upd.
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate, now time.Time) error

	// SetActive flips the active flag.
	SetActive(ctx context.Context, id string, active bool, now time.Time) error

	// SetRole changes the role.
	SetRole(ctx context.Context, id string, role domain.Role, now time.Time) error

	// SetTwoFactor stores secret (nil clears it) with the given enabled flag.
	SetTwoFactor(ctx context.Context, id string, secret *string, enabled bool, now time.Time) error

	// SetPendingTwoFactor replaces the secret of a user whose two-factor
	// authentication is not enabled. An enabled user yields ErrNotFound.
	SetPendingTwoFactor(ctx context.Context, id, secret string, now time.Time) error

	// EnableTwoFactor sets the enabled flag only if the stored secret is
	// still expectedSecret; otherwise ErrNotFound.
	EnableTwoFactor(ctx context.Context, id, expectedSecret string, now time.Time) error

	// TouchLastLogin records a successful login.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// ListUsers returns a page of users ordered by creation time, newest first.
	ListUsers(ctx context.Context, f domain.UserFilter) (domain.UserPage, error)

	// CountUsers fills the user half of the admin stats. Users created at or
	// after since count as new.
	CountUsers(ctx context.Context, since time.Time) (domain.Stats, error)
}

// RefreshTokens is the Session/Refresh Ledger.
type RefreshTokens interface {
	// CreateRefreshToken records an issued refresh token.
	CreateRefreshToken(ctx context.Context, rt domain.RefreshToken) error

	// GetRefreshTokenByHash looks up a ledger row by token fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// DeleteRefreshTokenByHash removes a row. Absent rows are not an error.
	DeleteRefreshTokenByHash(ctx context.Context, hash string) error

	// DeleteRefreshTokensByUser removes every row of a user.
	DeleteRefreshTokensByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpiredRefreshTokens purges rows whose expiry is not after now.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// LoginAttempts is the append-only login audit log.
type LoginAttempts interface {
	// RecordLoginAttempt appends one attempt.
	RecordLoginAttempt(ctx context.Context, a domain.LoginAttempt) error

	// CountLoginAttemptsSince returns total and failed attempts at or after since.
	CountLoginAttemptsSince(ctx context.Context, since time.Time) (total, failed int, err error)

	// ListLoginAttemptsByEmail returns the most recent attempts for email.
	ListLoginAttemptsByEmail(ctx context.Context, email string, limit int) ([]domain.LoginAttempt, error)
}

// TwoFactorChallenges holds pending second-factor logins.
type TwoFactorChallenges interface {
	// CreateChallenge stores a new challenge.
	CreateChallenge(ctx context.Context, c domain.TwoFactorChallenge) error

	// GetChallengeByHash looks a challenge up by token fingerprint.
	GetChallengeByHash(ctx context.Context, hash string) (domain.TwoFactorChallenge, error)

	// IncrementChallengeAttempts bumps the failure counter and returns it.
	IncrementChallengeAttempts(ctx context.Context, id string) (int, error)

	// DeleteChallenge consumes a challenge. ErrNotFound if it was already gone.
	DeleteChallenge(ctx context.Context, id string) error

	// DeleteChallengesByUser drops every pending challenge of a user.
	DeleteChallengesByUser(ctx context.Context, userID string) error

	// DeleteExpiredChallenges purges challenges whose expiry is not after now.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

// OAuthStates holds pending social login redirects.
type OAuthStates interface {
	// CreateOAuthState stores a new state.
	CreateOAuthState(ctx context.Context, st domain.OAuthState) error

	// ConsumeOAuthState deletes the unexpired state of provider with the
	// given fingerprint. ErrNotFound if there is none.
	ConsumeOAuthState(ctx context.Context, provider, hash string, now time.Time) error

	// DeleteExpiredOAuthStates purges states whose expiry is not after now.
	DeleteExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error)
}
