package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
	"github.com/aussiebroadwan/siteauth/pkg/httpx"
)

// TwoFactorHandler handles two-factor enrolment for the signed-in caller.
type TwoFactorHandler struct {
	TwoFactor *service.TwoFactorService
}

// HandleGenerate handles POST /api/auth/2fa/generate
//
//	@Summary		Start two-factor enrolment
//	@Description	Creates a new TOTP secret. It does not take effect until confirmed with /api/auth/2fa/enable.
//	@Description	The secret is shown once; calling again replaces a pending secret.
//	@Tags			Two-Factor
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TwoFactorGenerateResponse	"Secret and provisioning URI"
//	@Failure		400	{object}	authsdk.ErrorResponse				"Already enabled"
//	@Failure		401	{object}	authsdk.ErrorResponse				"Invalid or missing access token"
//	@Router			/api/auth/2fa/generate [post].
func (h *TwoFactorHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	enr, err := h.TwoFactor.Generate(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TwoFactorGenerateResponse{
		Secret:          enr.Secret,
		ProvisioningURI: enr.ProvisioningURI,
	})
}

// HandleQRCode handles GET /api/auth/2fa/qr-code
//
//	@Summary		Provisioning QR code
//	@Description	PNG image of the provisioning URI for the caller's pending or enabled secret.
//	@Tags			Two-Factor
//	@Security		BearerAuth
//	@Produce		png
//	@Success		200	{file}		binary					"QR code"
//	@Failure		400	{object}	authsdk.ErrorResponse	"No secret generated"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/api/auth/2fa/qr-code [get].
func (h *TwoFactorHandler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	png, err := h.TwoFactor.QRCode(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HandleEnable handles POST /api/auth/2fa/enable
//
//	@Summary		Confirm and enable two-factor authentication
//	@Tags			Two-Factor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorEnableRequest	true	"Code from the authenticator app"
//	@Success		200		{object}	authsdk.MessageResponse			"Enabled"
//	@Failure		400		{object}	authsdk.ErrorResponse			"No pending secret, or already enabled"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Invalid code or access token"
//	@Router			/api/auth/2fa/enable [post].
func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.TwoFactorEnableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TwoFactor.Enable(r.Context(), userID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "two-factor authentication enabled"})
}

// HandleDisable handles POST /api/auth/2fa/disable
//
//	@Summary		Disable two-factor authentication
//	@Description	Requires the current password, so a stolen access token alone cannot switch the second factor off.
//	@Tags			Two-Factor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorDisableRequest	true	"Current password"
//	@Success		200		{object}	authsdk.MessageResponse			"Disabled"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Not enabled"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Wrong password or invalid access token"
//	@Router			/api/auth/2fa/disable [post].
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.TwoFactorDisableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TwoFactor.Disable(r.Context(), userID, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "two-factor authentication disabled"})
}
