package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/store"
)

const (
	idpCode        = "good-code"
	idpAccessToken = "idp-access-token"
)

// fakeIdP answers the token, userinfo and GitHub user endpoints for one
// configurable identity.
type fakeIdP struct {
	srv *httptest.Server

	mu       sync.Mutex
	email    string
	verified bool
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	idp := &fakeIdP{email: "Social.User@Example.com", verified: true}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != idpCode {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"` + idpAccessToken + `","token_type":"Bearer","expires_in":3600}`))
	})

	authorised := func(h func(w http.ResponseWriter, email string, verified bool)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+idpAccessToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			idp.mu.Lock()
			email, verified := idp.email, idp.verified
			idp.mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			h(w, email, verified)
		}
	}

	mux.HandleFunc("GET /userinfo", authorised(func(w http.ResponseWriter, email string, verified bool) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub": "1234", "email": email, "email_verified": verified,
			"given_name": "Sofia", "family_name": "Kovalevskaya",
		})
	}))
	mux.HandleFunc("GET /user", authorised(func(w http.ResponseWriter, _ string, _ bool) {
		_ = json.NewEncoder(w).Encode(map[string]any{"login": "skova", "name": "Sofia Kovalevskaya"})
	}))
	mux.HandleFunc("GET /user/emails", authorised(func(w http.ResponseWriter, email string, verified bool) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"email": "noreply@users.example.com", "primary": false, "verified": true},
			{"email": email, "primary": true, "verified": verified},
		})
	}))

	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func (idp *fakeIdP) set(email string, verified bool) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	idp.email, idp.verified = email, verified
}

func (idp *fakeIdP) config(provider string) ProviderConfig {
	profile := idp.srv.URL + "/userinfo"
	if provider == ProviderGitHub {
		profile = idp.srv.URL + "/user"
	}
	return ProviderConfig{
		ClientID:     provider + "-client",
		ClientSecret: provider + "-secret",
		RedirectURL:  "https://auth.test/api/auth/callback/" + provider,
		Endpoint: oauth2.Endpoint{
			AuthURL:  idp.srv.URL + "/authorize",
			TokenURL: idp.srv.URL + "/token",
		},
		ProfileURL: profile,
	}
}

func newSocialLogin(t *testing.T) (*harness, *SocialLogin, *fakeIdP) {
	t.Helper()

	h := newHarness(t)
	idp := newFakeIdP(t)
	s := &SocialLogin{
		Gateway: h.gateway,
		Providers: map[string]*SocialProvider{
			ProviderGoogle: NewGoogleProvider(idp.config(ProviderGoogle)),
			ProviderGitHub: NewGitHubProvider(idp.config(ProviderGitHub)),
		},
		StateTTL:   10 * time.Minute,
		HTTPClient: idp.srv.Client(),
	}
	return h, s, idp
}

// begin starts a login and returns the state the provider would echo back.
func begin(t *testing.T, s *SocialLogin, provider string) string {
	t.Helper()

	raw, err := s.Begin(context.Background(), provider)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/authorize", u.Path)
	require.Equal(t, provider+"-client", u.Query().Get("client_id"))
	require.Equal(t, "https://auth.test/api/auth/callback/"+provider, u.Query().Get("redirect_uri"))

	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestSocialLoginCreatesVerifiedUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h, s, _ := newSocialLogin(t)

	res, err := s.Complete(ctx, ProviderGoogle, begin(t, s, ProviderGoogle), idpCode, "192.0.2.1")
	require.NoError(t, err)
	require.False(t, res.TwoFactorRequired())
	require.NotNil(t, res.Tokens)

	claims, err := h.tokens.Verify(ctx, KindAccess, res.Tokens.Access.Token)
	require.NoError(t, err)
	require.Equal(t, "social.user@example.com", claims.Email)

	u, err := h.store.Users().GetUserByEmail(ctx, "social.user@example.com")
	require.NoError(t, err)
	require.Equal(t, res.User.ID, u.ID)
	require.True(t, u.EmailVerified)
	require.True(t, u.Active)
	require.Equal(t, domain.RoleUser, u.Role)
	require.Equal(t, "Sofia", u.FirstName)
	require.Equal(t, "Kovalevskaya", u.LastName)
	require.NotNil(t, u.LastLoginAt)

	_, err = h.gateway.Refresh(ctx, res.Tokens.Refresh.Token)
	require.NoError(t, err, "refresh token is recorded in the ledger")

	attempts, err := h.store.LoginAttempts().ListLoginAttemptsByEmail(ctx, u.Email, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, domain.StageSocial, attempts[0].Stage)
	require.True(t, attempts[0].Success)

	// A second sign-in reuses the account.
	again, err := s.Complete(ctx, ProviderGoogle, begin(t, s, ProviderGoogle), idpCode, "192.0.2.1")
	require.NoError(t, err)
	require.Equal(t, u.ID, again.User.ID)
}

func TestSocialLoginGitHubUsesPrimaryEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h, s, idp := newSocialLogin(t)
	existing := h.register(t, "octo@example.com", strongPassword)
	idp.set("Octo@Example.com", true)

	res, err := s.Complete(ctx, ProviderGitHub, begin(t, s, ProviderGitHub), idpCode, "192.0.2.1")
	require.NoError(t, err)
	require.Equal(t, existing.ID, res.User.ID)

	// The password still works for the linked account.
	_, err = h.gateway.Login(ctx, "octo@example.com", strongPassword, "192.0.2.1")
	require.NoError(t, err)
}

func TestSocialLoginState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("single use", func(t *testing.T) {
		_, s, _ := newSocialLogin(t)
		state := begin(t, s, ProviderGoogle)

		_, err := s.Complete(ctx, ProviderGoogle, state, idpCode, "192.0.2.1")
		require.NoError(t, err)
		_, err = s.Complete(ctx, ProviderGoogle, state, idpCode, "192.0.2.1")
		require.ErrorIs(t, err, ErrInvalidChallenge)
	})

	t.Run("bound to its provider", func(t *testing.T) {
		_, s, _ := newSocialLogin(t)
		state := begin(t, s, ProviderGoogle)

		_, err := s.Complete(ctx, ProviderGitHub, state, idpCode, "192.0.2.1")
		require.ErrorIs(t, err, ErrInvalidChallenge)
	})

	t.Run("expires", func(t *testing.T) {
		h, s, _ := newSocialLogin(t)
		state := begin(t, s, ProviderGoogle)

		h.clock.Advance(10 * time.Minute)
		_, err := s.Complete(ctx, ProviderGoogle, state, idpCode, "192.0.2.1")
		require.ErrorIs(t, err, ErrInvalidChallenge)
	})

	t.Run("missing or forged", func(t *testing.T) {
		_, s, _ := newSocialLogin(t)
		_, err := s.Complete(ctx, ProviderGoogle, "", idpCode, "192.0.2.1")
		require.ErrorIs(t, err, ErrInvalidChallenge)
		_, err = s.Complete(ctx, ProviderGoogle, "forged", idpCode, "192.0.2.1")
		require.ErrorIs(t, err, ErrInvalidChallenge)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, s, _ := newSocialLogin(t)
		_, err := s.Begin(ctx, "myspace")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.Complete(ctx, "myspace", "x", idpCode, "192.0.2.1")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSocialLoginRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unverified email", func(t *testing.T) {
		h, s, idp := newSocialLogin(t)
		idp.set("someone@example.com", false)

		_, err := s.Complete(ctx, ProviderGitHub, begin(t, s, ProviderGitHub), idpCode, "192.0.2.1")
		require.ErrorIs(t, err, ErrInvalidCredential)

		_, err = h.store.Users().GetUserByEmail(ctx, "someone@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("code refused by provider", func(t *testing.T) {
		_, s, _ := newSocialLogin(t)
		_, err := s.Complete(ctx, ProviderGoogle, begin(t, s, ProviderGoogle), "stolen-code", "192.0.2.1")
		require.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("declined at provider", func(t *testing.T) {
		_, s, _ := newSocialLogin(t)
		_, err := s.Complete(ctx, ProviderGoogle, begin(t, s, ProviderGoogle), "", "192.0.2.1")
		require.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("disabled account", func(t *testing.T) {
		h, s, idp := newSocialLogin(t)
		u := h.register(t, "gone@example.com", strongPassword)
		require.NoError(t, h.store.Users().SetActive(ctx, u.ID, false, h.clock.Now()))
		idp.set("gone@example.com", true)

		_, err := s.Complete(ctx, ProviderGoogle, begin(t, s, ProviderGoogle), idpCode, "192.0.2.1")
		require.ErrorIs(t, err, ErrAccountDisabled)
	})
}

func TestSocialLoginStopsAtSecondFactor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h, s, idp := newSocialLogin(t)

	u := h.register(t, "guarded@example.com", strongPassword)
	secret := h.enableTwoFactor(t, u.ID)
	idp.set("guarded@example.com", true)

	res, err := s.Complete(ctx, ProviderGoogle, begin(t, s, ProviderGoogle), idpCode, "192.0.2.1")
	require.NoError(t, err)
	require.True(t, res.TwoFactorRequired())
	require.Nil(t, res.Tokens)

	done, err := h.gateway.CompleteTwoFactor(ctx, res.ChallengeToken, h.code(t, secret), "192.0.2.1")
	require.NoError(t, err)
	require.NotNil(t, done.Tokens)
}

func TestSocialName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Ada", socialName("  Ada ", "fallback"))
	require.Equal(t, "fallback", socialName("A", "fallback"))
	require.Equal(t, "", socialName("", ""))
	require.Equal(t, strings.Repeat("é", 50), socialName(strings.Repeat("é", 60), ""))
}
