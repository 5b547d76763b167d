package auth

import "context"

// Role represents the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// SecConfig mirrors the security-related configuration used to drive
// authentication, CORS and rate limiting behavior.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
	// SigningKeys verify the HMAC identity headers; by convention these are
	// the backend API keys.
	SigningKeys map[string]struct{}
	// RequirePrincipal makes an unresolvable principal a terminal 401. Set
	// for owner-scoped deployments (postgres backend).
	RequirePrincipal bool
}

type ctxPrincipalKey struct{}

// WithPrincipal returns a context carrying the verified principal id. Used
// by the middleware and by store tests.
func WithPrincipal(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey{}, id)
}

// PrincipalFromContext returns the verified principal id or empty string.
func PrincipalFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxPrincipalKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
