package middleware

import (
	"context"
	"net/http"

	"github.com/wryteon/wryteon/internal/api/problem"
	"github.com/wryteon/wryteon/internal/auth"
)

// UserLookup resolves token subjects to users.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*auth.User, error)
}

// JWTAuth validates the bearer token on JSON API routes and attaches the
// token's user to the context.
func JWTAuth(manager *auth.JWTManager, users UserLookup, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", problem.ErrUnauthorized, env)
				return
			}

			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="wryteon"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Missing bearer token", err, env)
				return
			}

			claims, err := manager.Validate(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="wryteon", error="invalid_token"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid token", err, env)
				return
			}

			user, err := users.GetUserByID(r.Context(), claims.Subject)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="wryteon", error="invalid_token"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unknown user", err, env)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
