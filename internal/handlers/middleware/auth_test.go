package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akratov/phoneauth/internal/apperrors"
	"github.com/akratov/phoneauth/internal/handlers"
	"github.com/akratov/phoneauth/internal/models"
	"github.com/akratov/phoneauth/internal/service/auth"
)

// stubAuthService mimics the auth service without a database behind it
type stubAuthService struct {
	principals map[string]models.Principal
}

func (s *stubAuthService) BearerFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	switch {
	case header == "":
		return "", auth.ErrNoBearerToken
	case len(header) <= len("Bearer "):
		return "", auth.ErrMalformedBearer
	}
	return header[len("Bearer "):], nil
}

func (s *stubAuthService) PrincipalByToken(_ context.Context, tokenString string) (models.Principal, error) {
	principal, ok := s.principals[tokenString]
	if !ok {
		return models.Principal{}, apperrors.ErrTokenRevokedOrExpired
	}
	return principal, nil
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	knownPrincipal := models.Principal{ID: uuid.New(), Phone: "9990001122"}
	service := &stubAuthService{principals: map[string]models.Principal{
		"live-token": knownPrincipal,
	}}

	// Echo handler records what the middleware passed downstream
	type seen struct {
		called    bool
		principal models.Principal
		bound     bool
	}

	newHandler := func(s *seen) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.called = true
			s.principal, s.bound = handlers.PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	}

	t.Run("no header passes through anonymous", func(t *testing.T) {
		var got seen
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		Authenticate(service)(newHandler(&got)).ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, got.called, "handler must run for anonymous requests")
		assert.False(t, got.bound, "no principal must be bound")
	})

	t.Run("malformed header is 401", func(t *testing.T) {
		var got seen
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer")

		Authenticate(service)(newHandler(&got)).ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, got.called, "handler must not run")
		assert.JSONEq(t, `{"error": "service_error", "message": "Invalid authorization header"}`, w.Body.String())
	})

	t.Run("unknown token is 401", func(t *testing.T) {
		var got seen
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer dead-token")

		Authenticate(service)(newHandler(&got)).ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, got.called, "handler must not run")
		assert.JSONEq(t, `{"error": "service_error", "message": "Invalid or expired token"}`, w.Body.String())
	})

	t.Run("valid token binds the principal", func(t *testing.T) {
		var got seen
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer live-token")

		Authenticate(service)(newHandler(&got)).ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		require.True(t, got.bound, "principal must be bound to the context")
		assert.Equal(t, knownPrincipal, got.principal)
	})
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("anonymous request is 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		RequireAuth(next).ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error": "service_error", "message": "Authentication required"}`, w.Body.String())
	})

	t.Run("bound principal passes", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := handlers.NewContextWithPrincipal(r.Context(), models.Principal{ID: uuid.New()})

		RequireAuth(next).ServeHTTP(w, r.WithContext(ctx))

		require.Equal(t, http.StatusNoContent, w.Code)
	})
}
