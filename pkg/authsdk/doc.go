/*
Package authsdk is the Go client for the site authentication service.

# Client vs Session

  - Client: public endpoints (register, login, refresh, health, JWKS) and
    creation of Sessions
  - Session: everything behind a bearer token (profile, two-factor
    management, logout, admin)

	client := authsdk.NewClient("https://auth.example.com")

	_, err := client.Register(ctx, authsdk.RegisterRequest{
		Email:     "ada@example.com",
		Password:  "Str0ng!Pass",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})

	session, err := client.Authenticate(ctx, "ada@example.com", "Str0ng!Pass")
	var tfa *authsdk.TwoFactorRequiredError
	if errors.As(err, &tfa) {
		session, err = client.AuthenticateWithTwoFactor(ctx, tfa.ChallengeToken, code)
	}

	user, err := session.Profile(ctx)

# Refresh Policy

A Session is a plain value owned by the caller; the package keeps no global
state. Every Session method goes through Session.Do, which:

 1. Calls the server with the current access token
 2. On ErrInvalidToken, refreshes the access token exactly once
 3. Retries the call exactly once with the new token

Any other error, or a failure of the refresh or the retry, is returned as
is. Goroutines that hit the same expired token share one refresh. Refresh
tokens are not rotated, so a Session keeps working until its refresh token
expires or is revoked.

Custom calls can use the same policy:

	err := session.Do(ctx, func(ctx context.Context, token string) error {
		return callSomeOtherService(ctx, token)
	})

# Errors

Server errors are *APIError values with a stable Code. They compare with
errors.Is against the package variables:

	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// wrong email or password
	}

The same values are used by the server to write its responses.
*/
package authsdk
