package gate

import (
	"errors"
	"net/http"
	"strings"

	"shiftscan/httpx"

	"go.uber.org/zap"
)

// PassphraseHeader carries the passphrase on a single gated request.
const PassphraseHeader = "X-Passphrase"

// Middleware lets a request through when it carries either a valid bearer
// token or the passphrase in PassphraseHeader.
func (g *Gate) Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := g.authorize(r)
			if err != nil {
				logger.Warn("gated request rejected",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err))
				httpx.Error(w, http.StatusUnauthorized, httpx.KindUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) authorize(r *http.Request) error {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return g.VerifyToken(strings.TrimPrefix(auth, "Bearer "))
	}
	return g.Check(r.Header.Get(PassphraseHeader))
}

type unlockRequest struct {
	Passphrase string `json:"passphrase"`
}

// UnlockHandler serves POST /api/unlock: {"passphrase":..} → {"token":..,"expiresAt":..}.
func UnlockHandler(g *Gate, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req unlockRequest
		if err := httpx.DecodeJSON(w, r, 4<<10, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, err.Error())
			return
		}
		if err := g.Check(req.Passphrase); err != nil {
			if errors.Is(err, ErrNotConfigured) {
				logger.Warn("unlock attempted but no passphrase is configured")
			}
			httpx.Error(w, http.StatusUnauthorized, httpx.KindUnauthorized, err.Error())
			return
		}
		token, exp, err := g.IssueToken()
		if err != nil {
			logger.Error("failed to issue unlock token", zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "failed to issue token")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"token": token, "expiresAt": exp})
	}
}
