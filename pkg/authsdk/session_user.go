package authsdk

import (
	"context"
	"net/http"
)

// ============================================================================
// Profile
// ============================================================================

// Profile fetches the caller's user record.
func (s *Session) Profile(ctx context.Context) (*User, error) {
	var out ProfileResponse
	if err := s.call(ctx, http.MethodGet, "/api/user/profile", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	s.setUser(out.User)
	return &out.User, nil
}

// UpdateProfile changes the caller's names. Nil fields are left as they are.
func (s *Session) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	var out ProfileResponse
	if err := s.call(ctx, http.MethodPut, "/api/user/profile", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	s.setUser(out.User)
	return &out.User, nil
}

// ============================================================================
// Logout
// ============================================================================

// Logout revokes the session's refresh token on the server and clears the
// session. Local state is cleared even when the server call fails.
func (s *Session) Logout(ctx context.Context) error {
	refreshToken := s.RefreshToken()
	if refreshToken == "" {
		return nil
	}
	defer s.clear()

	req := LogoutRequest{RefreshToken: refreshToken}
	return s.call(ctx, http.MethodPost, "/api/auth/logout", req, nil, http.StatusOK)
}

// LogoutAll revokes every refresh token of the caller, on every device, and
// clears the session. It returns how many were revoked.
func (s *Session) LogoutAll(ctx context.Context) (int64, error) {
	if !s.Active() {
		return 0, ErrNoSession
	}
	defer s.clear()

	var out LogoutAllResponse
	if err := s.call(ctx, http.MethodPost, "/api/auth/logout-all", nil, &out, http.StatusOK); err != nil {
		return 0, err
	}
	return out.Revoked, nil
}
