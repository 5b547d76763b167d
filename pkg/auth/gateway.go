package auth

import (
	"net"
	"net/http"
	"strings"

	"contextdb/pkg/logger"
	"contextdb/pkg/utils"
)

// AuthenticateRequestMiddleware builds the outer gateway: CORS, IP
// whitelist, API-key role resolution and per-key rate limiting. The resolved
// role name is exposed to downstream middleware via the X-Role-Name header.
func AuthenticateRequestMiddleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogRequest(r)

			// cors preflight
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,X-User-ID,X-User-Signature")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// ip whitelist
			if len(cfg.IPWhitelist) > 0 {
				ip := clientIP(r)
				if !ipWhitelisted(ip, cfg.IPWhitelist) {
					logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", r.URL.Path)
					utils.JSONError(w, http.StatusForbidden, "forbidden")
					return
				}
			}

			// allow unauthenticated health checks for probes
			if (r.URL.Path == "/healthz" || r.URL.Path == "/readyz") && r.Method == http.MethodGet {
				r.Header.Set("X-Role-Name", "unauth")
				next.ServeHTTP(w, r)
				return
			}

			role, key := authenticate(r, cfg)
			if role == RoleUnauth {
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			r.Header.Set("X-Role-Name", roleName(role))

			// frontend keys only reach the public context surface
			if role == RoleFrontend && !frontendAllowed(r) {
				logger.Warn("request_forbidden", "reason", "frontend_not_allowed", "path", r.URL.Path)
				utils.JSONError(w, http.StatusForbidden, "forbidden")
				return
			}

			if !limiters.Allow(key) {
				logger.Warn("rate_limited", "path", r.URL.Path)
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func roleName(role Role) string {
	switch role {
	case RoleFrontend:
		return "frontend"
	case RoleBackend:
		return "backend"
	case RoleAdmin:
		return "admin"
	}
	return "unauth"
}

// authenticate resolves the caller role from Authorization: Bearer or
// X-API-Key. The returned key doubles as the rate limiting bucket; for
// unauthenticated callers we fall back to the client IP.
func authenticate(r *http.Request, cfg SecConfig) (Role, string) {
	key := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		key = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("X-API-Key"))
	}
	if key == "" {
		return RoleUnauth, clientIP(r)
	}
	if _, ok := cfg.AdminKeys[key]; ok {
		return RoleAdmin, key
	}
	if _, ok := cfg.BackendKeys[key]; ok {
		return RoleBackend, key
	}
	if _, ok := cfg.FrontendKeys[key]; ok {
		return RoleFrontend, key
	}
	return RoleUnauth, clientIP(r)
}

func frontendAllowed(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, "/admin/")
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return h
	}
	return r.RemoteAddr
}

func ipWhitelisted(ip string, whitelist []string) bool {
	parsed := net.ParseIP(ip)
	for _, w := range whitelist {
		if w == ip {
			return true
		}
		if _, cidr, err := net.ParseCIDR(w); err == nil && parsed != nil && cidr.Contains(parsed) {
			return true
		}
	}
	return false
}
