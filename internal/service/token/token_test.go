package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akratov/phoneauth/internal/apperrors"
	"github.com/akratov/phoneauth/internal/models"
	"github.com/akratov/phoneauth/internal/repository/postgres"
	"github.com/akratov/phoneauth/internal/testutil"
)

func Test_TokenEngine(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withEngine := func(dbpool *pgxpool.Pool, t *testing.T, cfg Config, fn func(e *Engine, principal models.Principal)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			principal, err := storage.Principal().GetOrCreateByPhone(t.Context(), "9998887777")
			require.NoError(t, err)

			if cfg.SecretKey == "" {
				cfg.SecretKey = "test-secret-key"
			}
			engine, err := New(cfg, storage)
			require.NoError(t, err, "token engine should be created without errors")

			fn(engine, principal)
		})
	}

	t.Run("new requires secret", func(t *testing.T) {
		_, err := New(Config{}, postgres.NewStorage(pg.Pool))
		require.Error(t, err)
	})

	t.Run("new defaults", func(t *testing.T) {
		e, err := New(Config{SecretKey: "secret"}, postgres.NewStorage(pg.Pool))
		require.NoError(t, err)

		require.Equal(t, "secret", e.key)
		require.Equal(t, defaultSessionTokenTTL, e.sessionTTL)
		require.Equal(t, defaultSigningMethod, e.alg.Alg())
	})

	t.Run("issue and validate", func(t *testing.T) {
		withEngine(pg.Pool, t, Config{}, func(e *Engine, principal models.Principal) {
			issued, err := e.Issue(t.Context(), principal)

			require.NoError(t, err)
			require.NotEmpty(t, issued.Value)
			require.WithinDuration(t, time.Now().Add(defaultSessionTokenTTL), issued.ExpiresAt, time.Second)

			principalID, err := e.Validate(t.Context(), issued.Value)
			require.NoError(t, err)
			require.Equal(t, principal.ID, principalID)
		})
	})

	t.Run("multiple live tokens per principal", func(t *testing.T) {
		withEngine(pg.Pool, t, Config{}, func(e *Engine, principal models.Principal) {
			first, err := e.Issue(t.Context(), principal)
			require.NoError(t, err)
			second, err := e.Issue(t.Context(), principal)
			require.NoError(t, err)
			require.NotEqual(t, first.Value, second.Value)

			for _, issued := range []models.IssuedToken{first, second} {
				principalID, err := e.Validate(t.Context(), issued.Value)
				require.NoError(t, err)
				require.Equal(t, principal.ID, principalID)
			}
		})
	})

	t.Run("garbage is invalid signature", func(t *testing.T) {
		withEngine(pg.Pool, t, Config{}, func(e *Engine, _ models.Principal) {
			_, err := e.Validate(t.Context(), "not-a-jwt-at-all")

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrTokenInvalidSignature)
		})
	})

	t.Run("token signed with other key is invalid signature", func(t *testing.T) {
		withEngine(pg.Pool, t, Config{}, func(e *Engine, principal models.Principal) {
			forged := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
				RegisteredClaims: jwt.RegisteredClaims{
					ID:        uuid.NewString(),
					IssuedAt:  jwt.NewNumericDate(time.Now()),
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
				PrincipalID: principal.ID,
			})
			signed, err := forged.SignedString([]byte("attacker-key"))
			require.NoError(t, err)

			_, err = e.Validate(t.Context(), signed)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrTokenInvalidSignature)
		})
	})

	t.Run("well signed but never issued is not recognized", func(t *testing.T) {
		// Valid signature is not enough: the store lookup must still run
		withEngine(pg.Pool, t, Config{}, func(e *Engine, principal models.Principal) {
			stranger := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
				RegisteredClaims: jwt.RegisteredClaims{
					ID:        uuid.NewString(),
					IssuedAt:  jwt.NewNumericDate(time.Now()),
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
				PrincipalID: principal.ID,
			})
			signed, err := stranger.SignedString([]byte("test-secret-key"))
			require.NoError(t, err)

			_, err = e.Validate(t.Context(), signed)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrTokenNotRecognized)
		})
	})

	t.Run("revoked token is rejected", func(t *testing.T) {
		withEngine(pg.Pool, t, Config{}, func(e *Engine, principal models.Principal) {
			issued, err := e.Issue(t.Context(), principal)
			require.NoError(t, err)

			err = e.Revoke(t.Context(), issued.Value)
			require.NoError(t, err)

			_, err = e.Validate(t.Context(), issued.Value)
			require.Error(t, err, "revoked token must fail even before its expiry claim")
			assert.ErrorIs(t, err, apperrors.ErrTokenRevokedOrExpired)
		})
	})

	t.Run("revoke unknown token", func(t *testing.T) {
		withEngine(pg.Pool, t, Config{}, func(e *Engine, _ models.Principal) {
			err := e.Revoke(t.Context(), "never-issued")

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrTokenNotRecognized)
		})
	})

	t.Run("blacklisted token is rejected", func(t *testing.T) {
		// Blacklist path works without touching the session token row
		withEngine(pg.Pool, t, Config{}, func(e *Engine, principal models.Principal) {
			issued, err := e.Issue(t.Context(), principal)
			require.NoError(t, err)

			err = e.Blacklist(t.Context(), issued.Value)
			require.NoError(t, err)

			_, err = e.Validate(t.Context(), issued.Value)
			require.Error(t, err, "blacklisted token must fail while its row is untouched")
			assert.ErrorIs(t, err, apperrors.ErrTokenRevokedOrExpired)
		})
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		withEngine(pg.Pool, t, Config{SessionTTL: -time.Minute}, func(e *Engine, principal models.Principal) {
			issued, err := e.Issue(t.Context(), principal)
			require.NoError(t, err)

			_, err = e.Validate(t.Context(), issued.Value)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrTokenRevokedOrExpired)
		})
	})
}
