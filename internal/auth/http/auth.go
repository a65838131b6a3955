package http

import (
	"math"
	"net/http"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
	"github.com/aussiebroadwan/siteauth/pkg/httpx"
)

const tokenTypeBearer = "Bearer"

// AuthHandler serves the login state machine: register, login, the second
// factor, refresh and logout.
type AuthHandler struct {
	Gateway    *service.Gateway
	TrustProxy bool
	Now        func() time.Time
}

func (h *AuthHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// expiresIn is the whole seconds left until t, never negative.
func (h *AuthHandler) expiresIn(t time.Time) int64 {
	return int64(math.Max(0, math.Floor(t.Sub(h.now()).Seconds())))
}

// HandleRegister handles POST /api/auth/register
//
//	@Summary		Register an account
//	@Description	Creates a standard user. No tokens are issued; log in separately.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"Account details"
//	@Success		201		{object}	authsdk.RegisterResponse	"Account created"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Malformed request or weak credential"
//	@Failure		409		{object}	authsdk.ErrorResponse		"Email already registered"
//	@Failure		429		{object}	authsdk.ErrorResponse		"Rate limited"
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.Gateway.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{
		Message: "account created",
		UserID:  user.ID,
	})
}

// HandleLogin handles POST /api/auth/login
//
//	@Summary		Log in with email and password
//	@Description	Returns a token pair, or a challenge token when the account has two-factor authentication enabled.
//	@Description	Unknown email and wrong password get the same response.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Tokens, or twoFactorRequired with a challengeToken"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid email or password"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Account disabled"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limited"
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.Gateway.Login(r.Context(), req.Email, req.Password, httpx.ClientIP(r, h.TrustProxy))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, h.loginResponse(res))
}

// HandleLoginTwoFactor handles POST /api/auth/login/2fa
//
//	@Summary		Complete a login with a one-time code
//	@Description	Exchanges the challenge token from login plus a TOTP code for a token pair.
//	@Description	A challenge allows five wrong codes before it is discarded.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorLoginRequest	true	"Challenge token and code"
//	@Success		200		{object}	authsdk.LoginResponse			"Tokens"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Invalid code"
//	@Failure		403		{object}	authsdk.ErrorResponse			"Account disabled"
//	@Failure		410		{object}	authsdk.ErrorResponse			"Challenge invalid or expired"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Rate limited"
//	@Router			/api/auth/login/2fa [post].
func (h *AuthHandler) HandleLoginTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TwoFactorLoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.Gateway.CompleteTwoFactor(r.Context(), req.ChallengeToken, req.Code, httpx.ClientIP(r, h.TrustProxy))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, h.loginResponse(res))
}

func (h *AuthHandler) loginResponse(res domain.LoginResult) authsdk.LoginResponse {
	if res.TwoFactorRequired() {
		return authsdk.LoginResponse{
			Message:           "two-factor authentication required",
			TwoFactorRequired: true,
			ChallengeToken:    res.ChallengeToken,
			ExpiresIn:         h.expiresIn(res.ChallengeExpiresAt),
		}
	}

	resp := authsdk.LoginResponse{
		Message:      "login successful",
		AccessToken:  res.Tokens.Access.Token,
		RefreshToken: res.Tokens.Refresh.Token,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    h.expiresIn(res.Tokens.Access.ExpiresAt),
	}
	if res.User != nil {
		u := toUser(*res.User)
		resp.User = &u
	}
	return resp
}

// HandleRefresh handles POST /api/auth/refresh
//
//	@Summary		Get a new access token
//	@Description	The refresh token must verify and still be on record. It is not rotated.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.RefreshResponse	"New access token"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Missing, invalid, expired or revoked refresh token"
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.RefreshToken == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	access, err := h.Gateway.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RefreshResponse{
		AccessToken: access.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   h.expiresIn(access.ExpiresAt),
	})
}

// HandleLogout handles POST /api/auth/logout
//
//	@Summary		Log out
//	@Description	Revokes the given refresh token if it belongs to the caller.
//	@Description	Unknown, already revoked and foreign tokens are left alone and still get 200.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LogoutRequest	true	"Refresh token to revoke"
//	@Success		200		{object}	authsdk.MessageResponse	"Logged out"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.LogoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Gateway.Logout(r.Context(), userID, req.RefreshToken); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "logged out"})
}

// HandleLogoutAll handles POST /api/auth/logout-all
//
//	@Summary		Log out everywhere
//	@Description	Revokes every refresh token and pending two-factor challenge of the caller.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.LogoutAllResponse	"Number of sessions revoked"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Router			/api/auth/logout-all [post].
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	n, err := h.Gateway.LogoutAll(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LogoutAllResponse{
		Message: "logged out everywhere",
		Revoked: n,
	})
}
