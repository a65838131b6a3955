package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
	"github.com/aussiebroadwan/siteauth/pkg/httpx"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
)

// SocialHandler serves sign-in through external OAuth2 providers.
type SocialHandler struct {
	*AuthHandler
	Social *service.SocialLogin

	// CompleteURL, when set, is where the callback sends the browser with
	// the outcome in the URL fragment. Otherwise the callback answers with
	// the same JSON body as a password login.
	CompleteURL string
}

// HandleStart handles GET /api/auth/login/{provider}
//
//	@Summary		Start a social login
//	@Description	Redirects the browser to the provider's consent page.
//	@Tags			Auth
//	@Param			provider	path	string	true	"Provider"	Enums(google, github)
//	@Success		302
//	@Failure		404	{object}	authsdk.ErrorResponse	"Provider not configured"
//	@Router			/api/auth/login/{provider} [get].
func (h *SocialHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	target, err := h.Social.Begin(r.Context(), r.PathValue("provider"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleCallback handles GET /api/auth/callback/{provider}
//
//	@Summary		Finish a social login
//	@Description	Called by the provider. A verified provider email signs in the account with that email, creating it if needed.
//	@Description	Accounts with two-factor authentication get a challenge token, as with a password login.
//	@Description	With a completion URL configured the browser is redirected there and the outcome is in the URL fragment.
//	@Tags			Auth
//	@Produce		json
//	@Param			provider	path		string					true	"Provider"	Enums(google, github)
//	@Param			state		query		string					true	"State issued by the start endpoint"
//	@Param			code		query		string					false	"Authorization code"
//	@Success		200			{object}	authsdk.LoginResponse	"Tokens, or twoFactorRequired with a challengeToken"
//	@Success		302
//	@Failure		401	{object}	authsdk.ErrorResponse	"Declined, or no verified email"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Account disabled"
//	@Failure		404	{object}	authsdk.ErrorResponse	"Provider not configured"
//	@Failure		410	{object}	authsdk.ErrorResponse	"State invalid, used or expired"
//	@Failure		429	{object}	authsdk.ErrorResponse	"Rate limited"
//	@Router			/api/auth/callback/{provider} [get].
func (h *SocialHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if q.Get("error") != "" {
		code = ""
	}

	res, err := h.Social.Complete(r.Context(), r.PathValue("provider"), q.Get("state"), code, httpx.ClientIP(r, h.TrustProxy))

	httpx.NoCache(w)
	if h.CompleteURL == "" {
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, h.loginResponse(res))
		return
	}

	target, perr := url.Parse(h.CompleteURL)
	if perr != nil {
		slogx.FromContext(r.Context()).Error("invalid social completion url", slog.Any("error", perr))
		authsdk.ErrInternal.WriteError(w)
		return
	}
	if err != nil {
		target.Fragment = url.Values{"error": {socialErrorCode(r, err)}}.Encode()
	} else {
		target.Fragment = h.fragment(res).Encode()
	}
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *SocialHandler) fragment(res domain.LoginResult) url.Values {
	resp := h.loginResponse(res)
	v := url.Values{"expires_in": {strconv.FormatInt(resp.ExpiresIn, 10)}}
	if resp.TwoFactorRequired {
		v.Set("two_factor_required", "true")
		v.Set("challenge_token", resp.ChallengeToken)
		return v
	}
	v.Set("access_token", resp.AccessToken)
	v.Set("refresh_token", resp.RefreshToken)
	v.Set("token_type", resp.TokenType)
	return v
}

func socialErrorCode(r *http.Request, err error) string {
	apiErr := toAPIError(err)
	if apiErr == authsdk.ErrInternal {
		slogx.FromContext(r.Context()).Error("social login failed", slog.Any("error", err))
	}
	return apiErr.Code
}
