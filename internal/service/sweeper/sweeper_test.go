package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akratov/phoneauth/internal/apperrors"
	"github.com/akratov/phoneauth/internal/logger"
	"github.com/akratov/phoneauth/internal/models"
	"github.com/akratov/phoneauth/internal/repository"
	"github.com/akratov/phoneauth/internal/repository/postgres"
	"github.com/akratov/phoneauth/internal/testutil"
)

func Test_Sweeper(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	seedOTP := func(t *testing.T, storage repository.Storage, phone string, expiresAt time.Time) models.OTPCode {
		otp, err := storage.OTP().Create(t.Context(), models.OTPCode{
			ID:        uuid.New(),
			Phone:     phone,
			Code:      "123456",
			CreatedAt: time.Now().Add(-time.Hour),
			ExpiresAt: expiresAt,
		})
		require.NoError(t, err)
		return otp
	}

	seedToken := func(t *testing.T, storage repository.Storage, expiresAt time.Time) models.SessionToken {
		principal, err := storage.Principal().GetOrCreateByPhone(t.Context(), "9990001122")
		require.NoError(t, err)

		token, err := storage.Token().Save(t.Context(), models.SessionToken{
			Token:       uuid.NewString(),
			PrincipalID: principal.ID,
			CreatedAt:   time.Now().Add(-48 * time.Hour),
			ExpiresAt:   expiresAt,
		})
		require.NoError(t, err)
		return token
	}

	t.Run("new defaults", func(t *testing.T) {
		s, err := New(Config{}, postgres.NewStorage(pg.Pool), nil)
		require.NoError(t, err)

		require.Equal(t, defaultInterval, s.interval)
		require.Equal(t, defaultTokenGrace, s.tokenGrace)
		require.Equal(t, defaultBlacklistAge, s.blacklistAge)
	})

	t.Run("new requires storage", func(t *testing.T) {
		_, err := New(Config{}, nil, nil)
		require.Error(t, err)
	})

	t.Run("expired otp codes are pruned", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			expired := seedOTP(t, storage, "9991110001", time.Now().Add(-time.Minute))
			live := seedOTP(t, storage, "9991110002", time.Now().Add(5*time.Minute))

			s, err := New(Config{}, storage, logger.NewNoOpLogger())
			require.NoError(t, err)
			s.SweepOnce(t.Context())

			_, err = storage.OTP().GetLatestUnverified(t.Context(), expired.Phone)
			assert.ErrorIs(t, err, apperrors.ErrOTPNotFound, "expired code must be gone")

			got, err := storage.OTP().GetLatestUnverified(t.Context(), live.Phone)
			require.NoError(t, err, "live code must survive")
			assert.Equal(t, live.ID, got.ID)
		})
	})

	t.Run("tokens past expiry are marked, past grace deleted", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			longGone := seedToken(t, storage, time.Now().Add(-48*time.Hour))
			justExpired := seedToken(t, storage, time.Now().Add(-time.Minute))
			live := seedToken(t, storage, time.Now().Add(time.Hour))

			s, err := New(Config{TokenGrace: 24 * time.Hour}, storage, logger.NewNoOpLogger())
			require.NoError(t, err)
			s.SweepOnce(t.Context())

			_, err = storage.Token().Get(t.Context(), longGone.Token)
			assert.ErrorIs(t, err, apperrors.ErrTokenNotRecognized, "token past grace must be deleted")

			got, err := storage.Token().Get(t.Context(), justExpired.Token)
			require.NoError(t, err, "token within grace must still be stored")
			assert.True(t, got.Expired, "expiry must be materialized on the row")

			got, err = storage.Token().Get(t.Context(), live.Token)
			require.NoError(t, err)
			assert.False(t, got.Expired)
		})
	})

	t.Run("aged blacklist entries are pruned", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			_, err := storage.Blacklist().Add(t.Context(), "fresh-token")
			require.NoError(t, err)

			// Age the entry below the repo api: Add always stamps now
			_, err = tx.Exec(t.Context(),
				`INSERT INTO token_blacklist (token, blacklisted_at) VALUES ($1, $2)`,
				"stale-token", time.Now().Add(-8*24*time.Hour),
			)
			require.NoError(t, err)

			s, err := New(Config{}, storage, logger.NewNoOpLogger())
			require.NoError(t, err)
			s.SweepOnce(t.Context())

			stale, err := storage.Blacklist().Contains(t.Context(), "stale-token")
			require.NoError(t, err)
			assert.False(t, stale, "aged entry must be pruned")

			fresh, err := storage.Blacklist().Contains(t.Context(), "fresh-token")
			require.NoError(t, err)
			assert.True(t, fresh, "fresh entry must survive")
		})
	})

	t.Run("run stops on context cancel", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			s, err := New(Config{Interval: time.Millisecond}, postgres.NewStorage(tx), logger.NewNoOpLogger())
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(t.Context())
			done := make(chan struct{})
			go func() {
				s.Run(ctx)
				close(done)
			}()

			time.Sleep(10 * time.Millisecond)
			cancel()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("sweeper did not stop after context cancel")
			}
		})
	})
}
