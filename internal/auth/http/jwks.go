package http

import (
	"net/http"

	"github.com/aussiebroadwan/siteauth/pkg/httpx"
	"github.com/aussiebroadwan/siteauth/pkg/jwtx"
)

// JWKSHandler publishes the access-token verification keys. Only the access
// key set is ever passed here; refresh keys stay private.
//
//	@Summary		Get JWKS
//	@Description	Ed25519 public keys that verify access tokens.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	}
}
