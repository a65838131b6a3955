package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/siteauth/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeConflict           = "conflict"
	ErrorCodeWeakCredential     = "weak_credential"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeAccountDisabled    = "account_disabled"
	ErrorCodeInvalidToken       = httpx.CodeInvalidToken
	ErrorCodeInvalidChallenge   = "invalid_challenge"
	ErrorCodeInvalidCode        = "invalid_code"
	ErrorCodeForbidden          = httpx.CodeForbidden
	ErrorCodeRateLimited        = httpx.CodeRateLimited
	ErrorCodeNotFound           = "not_found"
	ErrorCodeTwoFactorState     = "two_factor_state"
	ErrorCodeServerError        = "server_error"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is the error body every endpoint returns. The server writes the
// predefined values below; the client parses responses back into APIErrors
// that compare equal to them under errors.Is.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on the error code so a parsed response matches the predefined
// error with the same code, whatever its message.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Code, e.Message)
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *APIError) WithMessage(msg string) *APIError {
	return &APIError{StatusCode: e.StatusCode, Code: e.Code, Message: msg}
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrInvalidRequest is returned for malformed JSON or missing fields.
	ErrInvalidRequest = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeInvalidRequest,
		Message:    "the request is malformed or missing required fields",
	}

	// ErrConflict is returned when registering an email that is taken.
	ErrConflict = &APIError{
		StatusCode: http.StatusConflict,
		Code:       ErrorCodeConflict,
		Message:    "an account with this email already exists",
	}

	// ErrWeakCredential is returned when an email, password or name breaks policy.
	ErrWeakCredential = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeWeakCredential,
		Message:    "credentials do not meet the policy",
	}

	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidCredentials,
		Message:    "invalid email or password",
	}

	// ErrAccountDisabled is returned when a deactivated account logs in.
	ErrAccountDisabled = &APIError{
		StatusCode: http.StatusForbidden,
		Code:       ErrorCodeAccountDisabled,
		Message:    "account is disabled",
	}

	// ErrInvalidToken is returned for a missing, invalid, expired or revoked token.
	ErrInvalidToken = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidToken,
		Message:    "invalid or expired token",
	}

	// ErrInvalidChallenge is returned for an unknown, used or expired challenge token.
	ErrInvalidChallenge = &APIError{
		StatusCode: http.StatusGone,
		Code:       ErrorCodeInvalidChallenge,
		Message:    "two-factor challenge is invalid or expired",
	}

	// ErrInvalidCode is returned for a wrong one-time code.
	ErrInvalidCode = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidCode,
		Message:    "invalid verification code",
	}

	// ErrForbidden is returned when the caller lacks the admin role, or an
	// admin tries to demote or deactivate themselves.
	ErrForbidden = &APIError{
		StatusCode: http.StatusForbidden,
		Code:       ErrorCodeForbidden,
		Message:    "insufficient permissions",
	}

	// ErrRateLimited is returned once the per-address ceiling is hit.
	ErrRateLimited = &APIError{
		StatusCode: http.StatusTooManyRequests,
		Code:       ErrorCodeRateLimited,
		Message:    "too many requests",
	}

	// ErrNotFound is returned by admin lookups of unknown users.
	ErrNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Code:       ErrorCodeNotFound,
		Message:    "not found",
	}

	// ErrTwoFactorState is returned when a 2FA operation does not fit the
	// account's current 2FA state.
	ErrTwoFactorState = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeTwoFactorState,
		Message:    "two-factor authentication is not in the required state",
	}

	// ErrInternal is returned for anything unexpected. Details stay in the server log.
	ErrInternal = &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       ErrorCodeServerError,
		Message:    "internal server error",
	}
)

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       ErrorCodeServerError,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
