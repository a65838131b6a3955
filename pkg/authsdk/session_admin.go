package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Admin operations. All of them require the admin role; other callers get
// ErrForbidden.

// ListUsersParams filters the admin user listing. Zero values use the
// server defaults.
type ListUsersParams struct {
	Page   int
	Limit  int
	Search string
}

func (p ListUsersParams) encode() string {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListUsers returns one page of users, newest first.
func (s *Session) ListUsers(ctx context.Context, params ListUsersParams) (*UserListResponse, error) {
	var out UserListResponse
	if err := s.call(ctx, http.MethodGet, "/api/admin/users"+params.encode(), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns the dashboard summary.
func (s *Session) Stats(ctx context.Context) (*StatsResponse, error) {
	var out StatsResponse
	if err := s.call(ctx, http.MethodGet, "/api/admin/stats", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetRole changes a user's role.
func (s *Session) SetRole(ctx context.Context, userID, role string) (*User, error) {
	var out UserResponse
	path := "/api/admin/users/" + url.PathEscape(userID) + "/role"
	if err := s.call(ctx, http.MethodPut, path, SetRoleRequest{Role: role}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// SetActive activates or deactivates a user. Deactivation ends all of that
// user's sessions.
func (s *Session) SetActive(ctx context.Context, userID string, active bool) (*User, error) {
	var out UserResponse
	path := "/api/admin/users/" + url.PathEscape(userID) + "/active"
	if err := s.call(ctx, http.MethodPut, path, SetActiveRequest{Active: active}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.User, nil
}
