package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to the site auth service. It covers the public endpoints and
// creates Sessions for everything behind a bearer token.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// TwoFactorRequiredError is returned by Authenticate when the account has
// two-factor authentication enabled. Pass ChallengeToken and a code from the
// authenticator app to AuthenticateWithTwoFactor.
type TwoFactorRequiredError struct {
	ChallengeToken string
	ExpiresIn      int64
}

func (e *TwoFactorRequiredError) Error() string {
	return "two-factor authentication required"
}

// ============================================================================
// Account
// ============================================================================

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", "", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login performs the password step. The response either carries tokens or
// has TwoFactorRequired set with a challenge token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	req := LoginRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteTwoFactor exchanges a challenge token and a one-time code for tokens.
func (c *Client) CompleteTwoFactor(ctx context.Context, challengeToken, code string) (*LoginResponse, error) {
	var out LoginResponse
	req := TwoFactorLoginRequest{ChallengeToken: challengeToken, Code: code}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login/2fa", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself stays valid.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	var out RefreshResponse
	req := RefreshRequest{RefreshToken: refreshToken}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/refresh", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// Sessions
// ============================================================================

// Authenticate logs in and returns a Session. When the account requires a
// second factor the error is a *TwoFactorRequiredError.
func (c *Client) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if resp.TwoFactorRequired {
		return nil, &TwoFactorRequiredError{
			ChallengeToken: resp.ChallengeToken,
			ExpiresIn:      resp.ExpiresIn,
		}
	}
	return c.newSession(resp)
}

// AuthenticateWithTwoFactor completes a pending login and returns a Session.
func (c *Client) AuthenticateWithTwoFactor(ctx context.Context, challengeToken, code string) (*Session, error) {
	resp, err := c.CompleteTwoFactor(ctx, challengeToken, code)
	if err != nil {
		return nil, err
	}
	return c.newSession(resp)
}

// NewSessionFromTokens resumes a session from stored tokens. The user is
// unknown until Profile is called.
func (c *Client) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int64) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
}

func (c *Client) newSession(resp *LoginResponse) (*Session, error) {
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, fmt.Errorf("login response carried no tokens")
	}
	s := c.NewSessionFromTokens(resp.AccessToken, resp.RefreshToken, resp.ExpiresIn)
	s.user = resp.User
	return s, nil
}

// ============================================================================
// System
// ============================================================================

// Health calls GET /api/health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Liveness checks if the service is alive.
func (c *Client) Liveness(ctx context.Context) (*ProbeResponse, error) {
	var out ProbeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/livez", "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Readiness checks if the service can reach its database.
func (c *Client) Readiness(ctx context.Context) (*ProbeResponse, error) {
	var out ProbeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/readyz", "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// JWKS fetches the public key set that verifies access tokens.
func (c *Client) JWKS(ctx context.Context) (*JWKSResponse, error) {
	var out JWKSResponse
	if err := c.doJSON(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
