package domain

import "time"

// IssuedToken is a signed token together with its exp claim.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenPair is handed back by a completed login.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// RefreshToken is one row of the refresh ledger, keyed by the SHA-256
// fingerprint of the token. The token string itself is never persisted.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
