package authsdk

import "time"

// ============================================================================
// Common Types
// ============================================================================

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	// Error is the stable error code (e.g., "invalid_credentials")
	Error string `json:"error" example:"invalid_credentials"`

	// Message is a human-readable description
	Message string `json:"message" example:"invalid email or password"`
}

// MessageResponse is returned by endpoints with nothing else to say.
type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

// User is the public view of an account. The two-factor secret is never
// part of it.
type User struct {
	ID               string     `json:"id" example:"01JB6Z8D6B4W9Q1M3XK7R2C5VN"`
	Email            string     `json:"email" example:"ada@example.com"`
	FirstName        string     `json:"firstName" example:"Ada"`
	LastName         string     `json:"lastName" example:"Lovelace"`
	Role             string     `json:"role" example:"user" enums:"user,admin"`
	Active           bool       `json:"isActive"`
	EmailVerified    bool       `json:"emailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastLoginAt      *time.Time `json:"lastLogin,omitempty"`
}

// ============================================================================
// Auth Types
// ============================================================================

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email     string `json:"email" example:"ada@example.com"`
	Password  string `json:"password" example:"Str0ng!Pass"`
	FirstName string `json:"firstName" example:"Ada"`
	LastName  string `json:"lastName" example:"Lovelace"`
}

// RegisterResponse is returned with 201 Created.
type RegisterResponse struct {
	Message string `json:"message" example:"account created"`
	UserID  string `json:"userId" example:"01JB6Z8D6B4W9Q1M3XK7R2C5VN"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" example:"ada@example.com"`
	Password string `json:"password" example:"Str0ng!Pass"`
}

// LoginResponse is returned by login and login/2fa. Exactly one of the
// token fields or the challenge fields is populated.
type LoginResponse struct {
	Message string `json:"message,omitempty" example:"login successful"`

	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType,omitempty" example:"Bearer"`
	ExpiresIn    int64  `json:"expiresIn,omitempty" example:"900"`
	User         *User  `json:"user,omitempty"`

	TwoFactorRequired bool   `json:"twoFactorRequired,omitempty"`
	ChallengeToken    string `json:"challengeToken,omitempty"`
}

// TwoFactorLoginRequest is the body of POST /api/auth/login/2fa.
type TwoFactorLoginRequest struct {
	ChallengeToken string `json:"challengeToken"`
	Code           string `json:"otpCode" example:"123456"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse carries only a new access token; the refresh token is
// not rotated.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType" example:"Bearer"`
	ExpiresIn   int64  `json:"expiresIn" example:"900"`
}

// LogoutRequest is the body of POST /api/auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutAllResponse reports how many sessions were revoked.
type LogoutAllResponse struct {
	Message string `json:"message" example:"logged out everywhere"`
	Revoked int64  `json:"revoked" example:"3"`
}

// ============================================================================
// Two-Factor Types
// ============================================================================

// TwoFactorGenerateResponse is shown once; the secret cannot be read back.
type TwoFactorGenerateResponse struct {
	Secret          string `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	ProvisioningURI string `json:"provisioningUri" example:"otpauth://totp/Vulsoft:ada@example.com?issuer=Vulsoft&secret=JBSWY3DPEHPK3PXP"`
}

// TwoFactorEnableRequest is the body of POST /api/auth/2fa/enable.
type TwoFactorEnableRequest struct {
	Code string `json:"otpCode" example:"123456"`
}

// TwoFactorDisableRequest is the body of POST /api/auth/2fa/disable.
type TwoFactorDisableRequest struct {
	Password string `json:"password"`
}

// ============================================================================
// Profile Types
// ============================================================================

// ProfileResponse wraps the caller's user record.
type ProfileResponse struct {
	User User `json:"user"`
}

// UpdateProfileRequest is the body of PUT /api/user/profile. Omitted fields
// are left unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// ============================================================================
// Admin Types
// ============================================================================

// UserListResponse is one page of GET /api/admin/users.
type UserListResponse struct {
	Users []User `json:"users"`
	Total int    `json:"total" example:"42"`
	Page  int    `json:"page" example:"1"`
	Limit int    `json:"limit" example:"20"`
}

// StatsResponse is the admin dashboard summary.
type StatsResponse struct {
	TotalUsers         int `json:"totalUsers"`
	ActiveUsers        int `json:"activeUsers"`
	AdminUsers         int `json:"adminUsers"`
	TwoFactorUsers     int `json:"twoFactorUsers"`
	NewUsersToday      int `json:"newUsersToday"`
	LoginAttemptsToday int `json:"loginAttemptsToday"`
	FailedLoginsToday  int `json:"failedLoginsToday"`
}

// SetRoleRequest is the body of PUT /api/admin/users/{id}/role.
type SetRoleRequest struct {
	Role string `json:"role" example:"admin" enums:"user,admin"`
}

// SetActiveRequest is the body of PUT /api/admin/users/{id}/active.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User User `json:"user"`
}

// ============================================================================
// System Types
// ============================================================================

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status" example:"OK"`
	Timestamp time.Time `json:"timestamp"`
}

// ProbeResponse is returned by /livez and /readyz.
type ProbeResponse struct {
	Status  string            `json:"status" example:"ok"`
	Version string            `json:"version" example:"dev"`
	Uptime  string            `json:"uptime" example:"1h2m3s"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// JWKSResponse is the public key set for access tokens.
type JWKSResponse struct {
	Keys []JWK `json:"keys"`
}

// JWK is one Ed25519 public key.
type JWK struct {
	Kty string `json:"kty" example:"OKP"`
	Use string `json:"use" example:"sig"`
	Alg string `json:"alg" example:"EdDSA"`
	Kid string `json:"kid"`
	Crv string `json:"crv" example:"Ed25519"`
	X   string `json:"x"`
}
