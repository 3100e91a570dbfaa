package e2e

import (
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stretchr/testify/require"

	"github.com/akratov/phoneauth/internal/delivery"
	"github.com/akratov/phoneauth/internal/handlers"
	"github.com/akratov/phoneauth/internal/handlers/middleware"
	"github.com/akratov/phoneauth/internal/logger"
	"github.com/akratov/phoneauth/internal/repository/postgres"
	"github.com/akratov/phoneauth/internal/service/auth"
	"github.com/akratov/phoneauth/internal/service/otp"
	"github.com/akratov/phoneauth/internal/service/token"
	"github.com/akratov/phoneauth/internal/testutil"
)

type Services struct {
	AuthService *auth.Service
	OTPService  *otp.Service
	TokenEngine *token.Engine
}

// Create db transaction and run the server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.WithTx with it
//
// Codes are exposed in send responses the way development deployments do,
// otherwise the flow would not be drivable over http alone.
func ServeInTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		log := logger.NewNoOpLogger()
		storage := postgres.NewStorage(tx)

		// Initialize services
		otpService, err := otp.NewService(otp.Config{}, storage, delivery.ConsoleGateway{Logger: log}, log)
		require.NoError(t, err, "otp service should be created without errors")

		tokenEngine, err := token.New(token.Config{SecretKey: "test-secret"}, storage)
		require.NoError(t, err, "token engine should be created without errors")

		authService, err := auth.NewService(otpService, tokenEngine, storage)
		require.NoError(t, err, "auth service starting error")

		// Initialize handlers
		authHandler := handlers.NewAuth(authService, true)

		// Complete all together as router
		router := handlers.NewRouter(
			authHandler,
			middleware.Authenticate(authService),
			middleware.RequireAuth,
			middleware.LoggerMiddleware(log),
		)

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			AuthService: authService,
			OTPService:  otpService,
			TokenEngine: tokenEngine,
		})
	})
}
