package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/akratov/phoneauth/internal/handlers"
	"github.com/akratov/phoneauth/internal/handlers/render"
	"github.com/akratov/phoneauth/internal/models"
	"github.com/akratov/phoneauth/internal/service/auth"
)

type authService interface {
	// Extract bearer credential from the request
	// auth.ErrNoBearerToken means the header is absent (anonymous request)
	BearerFromRequest(r *http.Request) (string, error)

	// Validate the token and materialize the principal bound to it
	PrincipalByToken(ctx context.Context, tokenString string) (models.Principal, error)
}

// Authenticate binds the principal to the request context when a valid bearer
// token is presented.
//
// A request without an Authorization header passes through anonymous: the
// downstream handler decides whether that is acceptable. A request that does
// present a header gets 401 when the header or the token is bad. The reason
// never echoes token state details.
func Authenticate(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := as.BearerFromRequest(r)
			switch {
			case errors.Is(err, auth.ErrNoBearerToken):
				next.ServeHTTP(w, r)
				return
			case err != nil:
				render.ServiceError(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}

			principal, err := as.PrincipalByToken(r.Context(), tokenString)
			if err != nil {
				render.ServiceError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := handlers.NewContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that reached the handler without a principal.
// Put it after Authenticate on routes that do not accept anonymous access.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := handlers.PrincipalFromContext(r.Context()); !ok {
			render.ServiceError(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
