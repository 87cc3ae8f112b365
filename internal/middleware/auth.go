package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/alouzou/sondage/backend/internal/auth"
	"github.com/alouzou/sondage/backend/internal/httputil"
)

// SessionLookup resolves a session cookie to its principal.
type SessionLookup interface {
	Get(ctx context.Context, sessionID string) (*auth.Principal, error)
}

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (auth.Principal, error)
}

// RequireAuth validates the Authorization bearer token, or failing that the
// session cookie, and injects the caller's auth.Principal into the request
// context.
func RequireAuth(sessions SessionLookup, tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
				const bearerPrefix = "Bearer "
				if !strings.HasPrefix(header, bearerPrefix) {
					httputil.WriteError(w, http.StatusUnauthorized, "bearer token required")
					return
				}
				p, err := tokens.Parse(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
				if err != nil {
					httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), p)))
				return
			}

			cookie, err := r.Cookie(auth.SessionCookie)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			p, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil || p == nil {
				httputil.WriteError(w, http.StatusUnauthorized, "session expired")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), *p)))
		})
	}
}
