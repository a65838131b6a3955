package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"

	googleProfileURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubProfileURL = "https://api.github.com/user"

	maxProfileBytes = 1 << 20
)

// ProviderConfig holds the client registration of one provider. Endpoint
// and ProfileURL default to the provider's public endpoints.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	Endpoint   oauth2.Endpoint
	ProfileURL string
}

func (c ProviderConfig) config(def oauth2.Endpoint, scopes ...string) *oauth2.Config {
	ep := c.Endpoint
	if ep.AuthURL == "" {
		ep = def
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     ep,
		Scopes:       scopes,
	}
}

func (c ProviderConfig) profileURL(def string) string {
	if c.ProfileURL == "" {
		return def
	}
	return c.ProfileURL
}

// NewGoogleProvider signs in with a Google account through OpenID Connect
// userinfo.
func NewGoogleProvider(cfg ProviderConfig) *SocialProvider {
	profileURL := cfg.profileURL(googleProfileURL)

	return &SocialProvider{
		Name:            ProviderGoogle,
		OAuth2:          cfg.config(endpoints.Google, "openid", "email", "profile"),
		AuthCodeOptions: []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")},
		Profile: func(ctx context.Context, c *http.Client) (SocialProfile, error) {
			var info struct {
				Email         string `json:"email"`
				EmailVerified bool   `json:"email_verified"`
				GivenName     string `json:"given_name"`
				FamilyName    string `json:"family_name"`
			}
			if err := getJSON(ctx, c, profileURL, &info); err != nil {
				return SocialProfile{}, err
			}
			return SocialProfile{
				Email:         info.Email,
				EmailVerified: info.EmailVerified,
				FirstName:     info.GivenName,
				LastName:      info.FamilyName,
			}, nil
		},
	}
}

// NewGitHubProvider signs in with a GitHub account. The address used is the
// primary email, and only when GitHub has verified it.
func NewGitHubProvider(cfg ProviderConfig) *SocialProvider {
	profileURL := cfg.profileURL(githubProfileURL)

	return &SocialProvider{
		Name:   ProviderGitHub,
		OAuth2: cfg.config(endpoints.GitHub, "read:user", "user:email"),
		Profile: func(ctx context.Context, c *http.Client) (SocialProfile, error) {
			var user struct {
				Login string `json:"login"`
				Name  string `json:"name"`
			}
			if err := getJSON(ctx, c, profileURL, &user); err != nil {
				return SocialProfile{}, err
			}

			var emails []struct {
				Email    string `json:"email"`
				Primary  bool   `json:"primary"`
				Verified bool   `json:"verified"`
			}
			if err := getJSON(ctx, c, profileURL+"/emails", &emails); err != nil {
				return SocialProfile{}, err
			}

			var p SocialProfile
			for _, e := range emails {
				if e.Primary {
					p.Email, p.EmailVerified = e.Email, e.Verified
					break
				}
			}

			first, last, _ := strings.Cut(strings.TrimSpace(user.Name), " ")
			if first == "" {
				first = user.Login
			}
			p.FirstName, p.LastName = first, strings.TrimSpace(last)
			return p, nil
		},
	}
}

func getJSON(ctx context.Context, c *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(v); err != nil {
		return fmt.Errorf("GET %s: decode: %w", url, err)
	}
	return nil
}
