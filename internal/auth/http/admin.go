package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
	"github.com/aussiebroadwan/siteauth/pkg/httpx"
	"github.com/aussiebroadwan/siteauth/pkg/idx"
)

// AdminHandler serves the administrator endpoints. The router only lets
// callers with the admin role through.
type AdminHandler struct {
	Admin *service.AdminService
}

// HandleListUsers handles GET /api/admin/users
//
//	@Summary		List users
//	@Description	Newest first. search matches email, first name and last name.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			page	query		int		false	"Page number (1-based)"	default(1)
//	@Param			limit	query		int		false	"Page size (1-100)"		default(20)
//	@Param			search	query		string	false	"Search text"
//	@Success		200		{object}	authsdk.UserListResponse	"One page of users"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		403		{object}	authsdk.ErrorResponse		"Not an admin"
//	@Router			/api/admin/users [get].
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	res, page, limit, err := h.Admin.ListUsers(r.Context(), page, limit, q.Get("search"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserListResponse{
		Users: toUsers(res.Users),
		Total: res.Total,
		Page:  page,
		Limit: limit,
	})
}

// HandleStats handles GET /api/admin/stats
//
//	@Summary		Dashboard statistics
//	@Description	User counts plus today's (UTC) login attempts.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.StatsResponse	"Summary"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Not an admin"
//	@Router			/api/admin/stats [get].
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Admin.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.StatsResponse(st))
}

// HandleSetRole handles PUT /api/admin/users/{id}/role
//
//	@Summary		Change a user's role
//	@Description	Admins cannot demote themselves.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"User ID"
//	@Param			request	body		authsdk.SetRoleRequest	true	"New role"
//	@Success		200		{object}	authsdk.UserResponse	"Updated user"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Unknown role"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Not an admin, or self-demotion"
//	@Failure		404		{object}	authsdk.ErrorResponse	"No such user"
//	@Router			/api/admin/users/{id}/role [put].
func (h *AdminHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	targetID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		authsdk.ErrNotFound.WriteError(w)
		return
	}

	var req authsdk.SetRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Role == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.Admin.SetRole(r.Context(), actorID, targetID.String(), domain.Role(req.Role))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{User: toUser(user)})
}

// HandleSetActive handles PUT /api/admin/users/{id}/active
//
//	@Summary		Activate or deactivate a user
//	@Description	Deactivation revokes every refresh token of the user. Admins cannot deactivate themselves.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"User ID"
//	@Param			request	body		authsdk.SetActiveRequest	true	"Active flag"
//	@Success		200		{object}	authsdk.UserResponse		"Updated user"
//	@Failure		403		{object}	authsdk.ErrorResponse		"Not an admin, or self-deactivation"
//	@Failure		404		{object}	authsdk.ErrorResponse		"No such user"
//	@Router			/api/admin/users/{id}/active [put].
func (h *AdminHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	actorID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	targetID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		authsdk.ErrNotFound.WriteError(w)
		return
	}

	// A missing flag must not read as "deactivate".
	var req struct {
		Active *bool `json:"active"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Active == nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.Admin.SetActive(r.Context(), actorID, targetID.String(), *req.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{User: toUser(user)})
}
