package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
)

// writeServiceError maps a service error kind onto its wire error. Anything
// unmapped is logged and answered with a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr == authsdk.ErrInternal {
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
	}
	apiErr.WriteError(w)
}

func toAPIError(err error) *authsdk.APIError {
	switch {
	case errors.Is(err, service.ErrConflict):
		return authsdk.ErrConflict
	case errors.Is(err, service.ErrWeakCredential):
		return authsdk.ErrWeakCredential.WithMessage(reason(err, service.ErrWeakCredential))
	case errors.Is(err, service.ErrInvalidCredential):
		return authsdk.ErrInvalidCredentials
	case errors.Is(err, service.ErrAccountDisabled):
		return authsdk.ErrAccountDisabled
	case errors.Is(err, service.ErrInvalidToken):
		return authsdk.ErrInvalidToken
	case errors.Is(err, service.ErrInvalidChallenge):
		return authsdk.ErrInvalidChallenge
	case errors.Is(err, service.ErrInvalidCode):
		return authsdk.ErrInvalidCode
	case errors.Is(err, service.ErrForbidden):
		return authsdk.ErrForbidden
	case errors.Is(err, service.ErrNotFound):
		return authsdk.ErrNotFound
	case errors.Is(err, service.ErrUnknownRole):
		return authsdk.ErrInvalidRequest.WithMessage("role must be user or admin")
	case errors.Is(err, service.ErrNothingToUpdate):
		return authsdk.ErrInvalidRequest.WithMessage("no fields to update")
	case errors.Is(err, service.ErrTwoFactorAlreadyEnabled):
		return authsdk.ErrTwoFactorState.WithMessage("two-factor authentication is already enabled")
	case errors.Is(err, service.ErrTwoFactorNotInitialised):
		return authsdk.ErrTwoFactorState.WithMessage("generate a two-factor secret first")
	case errors.Is(err, service.ErrTwoFactorNotEnabled):
		return authsdk.ErrTwoFactorState.WithMessage("two-factor authentication is not enabled")
	default:
		return authsdk.ErrInternal
	}
}

// reason strips the sentinel prefix from a wrapped policy error, leaving
// the human-readable part.
func reason(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == sentinel.Error() {
		return authsdk.ErrWeakCredential.Message
	}
	return msg
}
