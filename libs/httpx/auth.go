package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/huddlecal/huddle/libs/auth"
)

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID string
	Name   string
	Role   string
}

type TokenVerifier func(token string) (*auth.Claims, error)

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(verify TokenVerifier) Middleware {
	return authMiddleware(verify, true)
}

// OptionalAuth attaches a principal when a valid token is present and lets
// anonymous requests through. A present but invalid token is still rejected.
func OptionalAuth(verify TokenVerifier) Middleware {
	return authMiddleware(verify, false)
}

func authMiddleware(verify TokenVerifier, required bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if authHeader == "" {
				if required {
					WriteError(w, http.StatusUnauthorized, "missing Authorization header")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") || len(authHeader) <= len("Bearer ") {
				WriteError(w, http.StatusUnauthorized, "invalid Authorization header")
				return
			}

			claims, err := verify(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := ContextWithPrincipal(r.Context(), Principal{
				UserID: claims.UserID(),
				Name:   claims.Name,
				Role:   claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) Middleware {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if _, ok := allowed[p.Role]; !ok {
				WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
