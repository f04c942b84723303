package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/trackgate/trackgate/pkg/auth"
	"github.com/trackgate/trackgate/pkg/contextkeys"
	"github.com/trackgate/trackgate/pkg/httputil"
)

// SessionMiddleware resolves the Authorization Bearer token to an active
// session and stores it in the request context.
type SessionMiddleware struct {
	auth     *auth.Service
	optional bool // allow unauthenticated requests through without a session
}

// NewSessionMiddleware creates session middleware. With optional set,
// requests without a token proceed unauthenticated; the tenant scope
// middleware or the handler decides whether that is acceptable.
func NewSessionMiddleware(authService *auth.Service, optional bool) *SessionMiddleware {
	return &SessionMiddleware{auth: authService, optional: optional}
}

// Handler wraps next with session resolution.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		session, err := m.auth.Resolve(parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired session")
			return
		}

		ctx := contextkeys.WithSession(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireOperation gates a route on the session's role. It must run after
// SessionMiddleware on a non-optional chain.
func RequireOperation(authService *auth.Service, op auth.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if err := authService.Authorize(session, op); err != nil {
				httputil.WriteForbidden(w, "operation not permitted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the resolved session, or nil when the request
// is unauthenticated.
func SessionFromContext(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(contextkeys.SessionKey).(*auth.Session)
	return session
}
