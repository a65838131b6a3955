package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/store"
	"github.com/aussiebroadwan/siteauth/pkg/authsdk"
	"github.com/aussiebroadwan/siteauth/pkg/httpx"
	"github.com/aussiebroadwan/siteauth/pkg/jwtx"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness check
//	@Description	503 until the database answers and both signing keys are loaded.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.ProbeResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.ProbeResponse	"status, uptime, version, checks"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys ...*jwtx.KeyManager,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"signer":   "ok",
		}
		status, code := "ok", http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			slogx.FromContext(r.Context()).Warn("readiness: database ping failed", slog.Any("error", err))
			checks["database"] = "unavailable"
			status, code = "degraded", http.StatusServiceUnavailable
		}

		for _, km := range keys {
			if km == nil || !km.IsReady() {
				checks["signer"] = "no keys loaded"
				status, code = "degraded", http.StatusServiceUnavailable
				break
			}
		}

		httpx.WriteJSON(w, code, authsdk.ProbeResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
