package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akratov/phoneauth/internal/db"
	"github.com/akratov/phoneauth/internal/delivery"
	"github.com/akratov/phoneauth/internal/handlers"
	"github.com/akratov/phoneauth/internal/handlers/middleware"
	"github.com/akratov/phoneauth/internal/logger"
	"github.com/akratov/phoneauth/internal/repository/postgres"
	"github.com/akratov/phoneauth/internal/service/auth"
	"github.com/akratov/phoneauth/internal/service/otp"
	"github.com/akratov/phoneauth/internal/service/sweeper"
	"github.com/akratov/phoneauth/internal/service/token"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Sweeper    *sweeper.Sweeper
	Logger     logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if c.SecretKey == "" {
		return nil, errors.New("secret key must be set")
	}

	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// SMS provider integration lives behind delivery.Gateway; the console
	// gateway logs the message and keeps the code verifiable either way
	gateway := delivery.ConsoleGateway{Logger: log.With("component", "sms")}

	// Initialize services
	otpService, err := otp.NewService(otp.Config{
		ValidityWindow:  c.OTPTTL,
		DeliveryTimeout: c.SMSTimeout,
	}, storage, gateway, log)
	if err != nil {
		return nil, fmt.Errorf("error while creating otp service. Err: %w", err)
	}

	tokenEngine, err := token.New(token.Config{
		SecretKey:  c.SecretKey,
		SessionTTL: c.TokenTTL,
	}, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating token engine. Err: %w", err)
	}

	authService, err := auth.NewService(otpService, tokenEngine, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	sweep, err := sweeper.New(sweeper.Config{Interval: c.SweepInterval}, storage, log)
	if err != nil {
		return nil, fmt.Errorf("error while creating sweeper. Err: %w", err)
	}

	// Initialize handlers
	authHandler := handlers.NewAuth(authService, c.Environment == logger.EnvDevelopment)

	mux := handlers.NewRouter(
		authHandler,
		middleware.Authenticate(authService),
		middleware.RequireAuth,
		middleware.LoggerMiddleware(log),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		Sweeper:    sweep,
		Logger:     log,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	// Prune expired rows until the server stops
	go s.Sweeper.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.Logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
