package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/store"
	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/aussiebroadwan/siteauth/pkg/idx"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
	"golang.org/x/oauth2"
)

// DefaultSocialStateTTL bounds the time between the redirect to a provider
// and the callback.
const DefaultSocialStateTTL = 10 * time.Minute

// SocialProfile is what a provider vouches for about the signed-in person.
type SocialProfile struct {
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
}

// SocialProvider is one OAuth2 identity provider.
type SocialProvider struct {
	Name   string
	OAuth2 *oauth2.Config

	// AuthCodeOptions are added to every authorization URL.
	AuthCodeOptions []oauth2.AuthCodeOption

	// Profile reads the identity using a client that carries the access token.
	Profile func(ctx context.Context, c *http.Client) (SocialProfile, error)
}

// SocialLogin signs users in through external OAuth2 providers. A verified
// provider email finds the account with that email or creates one, and the
// login then goes through the same second-factor gate as a password login.
type SocialLogin struct {
	Gateway   *Gateway
	Providers map[string]*SocialProvider
	StateTTL  time.Duration

	// HTTPClient is used for the code exchange and profile calls. Nil means
	// http.DefaultClient.
	HTTPClient *http.Client
}

// Enabled lists the configured provider names in order.
func (s *SocialLogin) Enabled() []string {
	return slices.Sorted(maps.Keys(s.Providers))
}

// Begin stores a fresh state for provider and returns the URL to send the
// browser to.
func (s *SocialLogin) Begin(ctx context.Context, provider string) (string, error) {
	p, ok := s.Providers[provider]
	if !ok {
		return "", ErrNotFound
	}

	state, err := cryptox.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}

	ttl := s.StateTTL
	if ttl <= 0 {
		ttl = DefaultSocialStateTTL
	}
	now := s.Gateway.Now.now()
	err = s.Gateway.Store.OAuthStates().CreateOAuthState(ctx, domain.OAuthState{
		ID:        idx.NewAt(now).String(),
		Provider:  p.Name,
		StateHash: cryptox.FingerprintToken(state),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	return p.OAuth2.AuthCodeURL(state, p.AuthCodeOptions...), nil
}

// Complete handles the provider callback. The state is single-use and
// bound to provider; a missing, replayed or expired state is
// ErrInvalidChallenge. An empty code means the user declined at the
// provider.
func (s *SocialLogin) Complete(ctx context.Context, provider, state, code, ip string) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx).With(slog.String("provider", provider))

	p, ok := s.Providers[provider]
	if !ok {
		return domain.LoginResult{}, ErrNotFound
	}
	if state == "" {
		return domain.LoginResult{}, ErrInvalidChallenge
	}
	err := s.Gateway.Store.OAuthStates().ConsumeOAuthState(ctx, p.Name, cryptox.FingerprintToken(state), s.Gateway.Now.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, ErrInvalidChallenge
		}
		return domain.LoginResult{}, fmt.Errorf("consume oauth state: %w", err)
	}
	if code == "" {
		l.Info("social login declined at provider")
		return domain.LoginResult{}, ErrInvalidCredential
	}

	profile, err := s.fetchProfile(ctx, p, code)
	if err != nil {
		l.Warn("social login failed at provider", slog.Any("error", err))
		return domain.LoginResult{}, ErrInvalidCredential
	}

	email := NormalizeEmail(profile.Email)
	if !profile.EmailVerified || ValidateEmail(email) != nil {
		s.Gateway.recordAttempt(ctx, email, ip, false, domain.StageSocial)
		l.Info("social login failed: no verified email")
		return domain.LoginResult{}, ErrInvalidCredential
	}

	user, err := s.findOrCreate(ctx, email, profile)
	if err != nil {
		return domain.LoginResult{}, err
	}
	if !user.Active {
		s.Gateway.recordAttempt(ctx, email, ip, false, domain.StageSocial)
		l.Info("social login failed: account disabled", slog.String("user_id", user.ID))
		return domain.LoginResult{}, ErrAccountDisabled
	}

	if user.TwoFactorEnabled {
		token, expiresAt, err := s.Gateway.openChallenge(ctx, user)
		if err != nil {
			return domain.LoginResult{}, err
		}
		s.Gateway.recordAttempt(ctx, email, ip, true, domain.StageSocial)
		l.Info("social login awaiting second factor", slog.String("user_id", user.ID))
		return domain.LoginResult{User: &user, ChallengeToken: token, ChallengeExpiresAt: expiresAt}, nil
	}

	pair, err := s.Gateway.issuePair(ctx, user, nil)
	if err != nil {
		return domain.LoginResult{}, err
	}
	s.Gateway.recordAttempt(ctx, email, ip, true, domain.StageSocial)
	l.Info("social login succeeded", slog.String("user_id", user.ID))
	return domain.LoginResult{User: &user, Tokens: pair}, nil
}

func (s *SocialLogin) fetchProfile(ctx context.Context, p *SocialProvider, code string) (SocialProfile, error) {
	if s.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
	}

	tok, err := p.OAuth2.Exchange(ctx, code)
	if err != nil {
		return SocialProfile{}, fmt.Errorf("exchange code: %w", err)
	}
	profile, err := p.Profile(ctx, p.OAuth2.Client(ctx, tok))
	if err != nil {
		return SocialProfile{}, fmt.Errorf("read profile: %w", err)
	}
	return profile, nil
}

// findOrCreate returns the account for email, creating an active, verified
// user when there is none. The new account gets a random password nobody
// knows, so it can only sign in through a provider.
func (s *SocialLogin) findOrCreate(ctx context.Context, email string, profile SocialProfile) (domain.User, error) {
	users := s.Gateway.Store.Users()

	user, err := users.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	secret, err := cryptox.NewOpaqueToken()
	if err != nil {
		return domain.User{}, fmt.Errorf("generate password: %w", err)
	}
	hash, err := cryptox.HashPassword(secret)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	local, _, _ := strings.Cut(email, "@")
	now := s.Gateway.Now.now()
	user = domain.User{
		ID:            idx.NewAt(now).String(),
		Email:         email,
		PasswordHash:  hash,
		FirstName:     socialName(profile.FirstName, local),
		LastName:      socialName(profile.LastName, ""),
		Role:          domain.RoleUser,
		Active:        true,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Created by a concurrent callback for the same email.
			return users.GetUserByEmail(ctx, email)
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered through social login", slog.String("user_id", user.ID))
	return user, nil
}

// socialName fits a provider-supplied name into the profile name rules,
// falling back when it is too short.
func socialName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minNameLength {
		name = fallback
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}
