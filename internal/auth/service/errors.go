package service

import "errors"

// Error kinds surfaced to callers. Internal causes are logged, never returned.
var (
	ErrConflict          = errors.New("conflict")
	ErrWeakCredential    = errors.New("weak_credential")
	ErrInvalidCredential = errors.New("invalid_credentials")
	ErrAccountDisabled   = errors.New("account_disabled")
	ErrInvalidToken      = errors.New("invalid_token")
	ErrInvalidChallenge  = errors.New("invalid_challenge")
	ErrInvalidCode       = errors.New("invalid_code")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not_found")
	ErrNothingToUpdate   = errors.New("nothing_to_update")
	ErrUnknownRole       = errors.New("unknown_role")

	ErrTwoFactorAlreadyEnabled = errors.New("two_factor_already_enabled")
	ErrTwoFactorNotInitialised = errors.New("two_factor_not_initialised")
	ErrTwoFactorNotEnabled     = errors.New("two_factor_not_enabled")
)
