package domain

import "time"

// Login stages recorded in the audit log.
const (
	StagePassword  = "password"
	StageTwoFactor = "two_factor"
	StageSocial    = "social"
)

// LoginAttempt is an append-only audit record.
type LoginAttempt struct {
	ID        string
	Email     string
	IP        string
	Success   bool
	Stage     string
	CreatedAt time.Time
}

// TwoFactorChallenge binds a pending login to a user until a valid OTP is
// supplied or it expires.
type TwoFactorChallenge struct {
	ID        string
	UserID    string
	TokenHash string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// OAuthState ties a social login redirect to the callback that completes it.
type OAuthState struct {
	ID        string
	Provider  string
	StateHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// LoginResult is the outcome of a password login: either tokens, or a
// challenge token when a second factor is required.
type LoginResult struct {
	User *User

	Tokens *TokenPair

	ChallengeToken     string
	ChallengeExpiresAt time.Time
}

// TwoFactorRequired reports whether the login stopped at the second factor.
func (r LoginResult) TwoFactorRequired() bool {
	return r.Tokens == nil && r.ChallengeToken != ""
}

// TwoFactorEnrollment is returned once by the generate step.
type TwoFactorEnrollment struct {
	Secret          string
	ProvisioningURI string
}
