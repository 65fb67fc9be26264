package http

import (
	"net/http"
	"time"

	"github.com/patronhq/patron/internal/auth/session"
	"github.com/patronhq/patron/internal/auth/store"
	"github.com/patronhq/patron/pkg/httpx"
	"github.com/patronhq/patron/pkg/jwtx"
	"github.com/patronhq/patron/pkg/slogx"
)

type healthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// LivezHandler is the liveness probe: 200 whenever the process serves HTTP.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler is the readiness probe: the database and session store must
// answer and at least one verification key must be loaded.
func ReadyzHandler(startTime time.Time, version string, st store.Store, sess session.Store, keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := slogx.FromContext(r.Context())

		if err := st.Ping(r.Context()); err != nil {
			l.Error("readyz: database unreachable", "error", err)
			httpx.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "database unavailable"})
			return
		}
		if err := sess.Ping(r.Context()); err != nil {
			l.Error("readyz: session store unreachable", "error", err)
			httpx.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "session store unavailable"})
			return
		}
		if !keys.IsReady() {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "signing keys not loaded"})
			return
		}

		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// JWKSHandler publishes the public verification keys.
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	}
}
