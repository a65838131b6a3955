package authsdk

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoSession is returned by a Session that has been logged out.
var ErrNoSession = errors.New("authsdk: session has no tokens")

// Session is an authenticated session owned by the caller. It is safe for
// concurrent use.
//
// Authenticated calls go through Do: the call is made with the current
// access token, and if the server answers ErrInvalidToken the session
// refreshes once and retries once. Callers racing on an expired token share
// a single refresh.
type Session struct {
	client *Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	user         *User

	// refreshMu serialises refreshes so concurrent callers share one.
	refreshMu sync.Mutex
}

// Op is an authenticated call. It receives the access token to present.
type Op func(ctx context.Context, accessToken string) error

// Do runs op with the current access token. On ErrInvalidToken it refreshes
// exactly once and retries exactly once. Any other error, and any error from
// the refresh or the retry, is returned unchanged.
func (s *Session) Do(ctx context.Context, op Op) error {
	token := s.AccessToken()
	if token == "" {
		return ErrNoSession
	}

	err := op(ctx, token)
	if !errors.Is(err, ErrInvalidToken) {
		return err
	}

	fresh, err := s.refresh(ctx, token)
	if err != nil {
		return err
	}

	return op(ctx, fresh)
}

// refresh obtains a new access token to replace stale. If another caller has
// already replaced stale, its token is reused instead of refreshing again.
func (s *Session) refresh(ctx context.Context, stale string) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	current, refreshToken := s.accessToken, s.refreshToken
	s.mu.RUnlock()

	if current != stale && current != "" {
		return current, nil
	}
	if refreshToken == "" {
		return "", ErrNoSession
	}

	resp, err := s.client.Refresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Logout may have run while the refresh was in flight.
	if s.refreshToken == "" {
		return "", ErrNoSession
	}
	s.accessToken = resp.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)

	return s.accessToken, nil
}

// clear drops every token held by the session.
func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.user = nil
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// ExpiresAt is when the current access token expires, by the local clock.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// User returns the user from login or the last Profile call, or nil.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Active reports whether the session still holds tokens.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken != ""
}

func (s *Session) setUser(u User) {
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
}

// call is the JSON round trip wrapped in Do.
func (s *Session) call(ctx context.Context, method, path string, in, out any, expectedStatus int) error {
	return s.Do(ctx, func(ctx context.Context, token string) error {
		return s.client.doJSON(ctx, method, path, token, in, out, expectedStatus)
	})
}
