package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
	"github.com/aussiebroadwan/siteauth/pkg/httpx"
)

type ProfileHandler struct {
	Users *service.UserService
}

// HandleGet handles GET /api/user/profile
//
//	@Summary		Get own profile
//	@Tags			Profile
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ProfileResponse	"The caller's user record"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/api/user/profile [get].
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.Users.GetUserByID(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ProfileResponse{User: toUser(user)})
}

// HandleUpdate handles PUT /api/user/profile
//
//	@Summary		Update own profile
//	@Description	Changes first and/or last name. At least one field is required.
//	@Tags			Profile
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.UpdateProfileRequest	true	"Fields to change"
//	@Success		200		{object}	authsdk.ProfileResponse			"Updated record"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Nothing to update or invalid name"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Invalid or missing access token"
//	@Router			/api/user/profile [put].
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.UpdateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.Users.UpdateProfile(r.Context(), userID, domain.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ProfileResponse{User: toUser(user)})
}

// A verified token whose subject no longer resolves is treated as invalid.
func (h *ProfileHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrNotFound) {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	writeServiceError(w, r, err)
}
