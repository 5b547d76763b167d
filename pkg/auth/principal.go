package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"contextdb/pkg/logger"
	"contextdb/pkg/utils"
)

// ResolvePrincipal verifies HMAC identity headers and injects the verified
// principal into the request context. Frontend callers must present
// X-User-ID plus X-User-Signature (hex HMAC-SHA256 of the user id under a
// configured signing key). Backend and admin callers are trusted server-side
// services and may assert X-User-ID without a signature; when they do send
// one it is still verified.
//
// With cfg.RequirePrincipal set, a request that resolves no principal is
// rejected with 401 before it reaches any handler.
func ResolvePrincipal(cfg SecConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := r.Header.Get("X-Role-Name")
			userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
			sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

			if sig == "" {
				if (role == "backend" || role == "admin") && userID != "" {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), userID)))
					return
				}
				if cfg.RequirePrincipal {
					logger.Warn("missing_identity_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
					utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if userID == "" {
				utils.JSONError(w, http.StatusUnauthorized, "missing identity headers")
				return
			}
			if len(cfg.SigningKeys) == 0 {
				logger.Error("no_signing_keys_configured")
				utils.JSONError(w, http.StatusInternalServerError, "server misconfigured")
				return
			}
			ok := false
			for k := range cfg.SigningKeys {
				mac := hmac.New(sha256.New, []byte(k))
				mac.Write([]byte(userID))
				expected := hex.EncodeToString(mac.Sum(nil))
				if hmac.Equal([]byte(expected), []byte(sig)) {
					ok = true
					break
				}
			}
			if !ok {
				logger.Warn("invalid_signature", "user", userID)
				utils.JSONError(w, http.StatusUnauthorized, "invalid signature")
				return
			}
			logger.Debug("principal_verified", "user", userID)
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), userID)))
		})
	}
}
