package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/akratov/phoneauth/internal/logger"
	"github.com/akratov/phoneauth/internal/repository"
)

const (
	defaultInterval     = 10 * time.Minute
	defaultTokenGrace   = 24 * time.Hour
	defaultBlacklistAge = 7 * 24 * time.Hour
)

type Config struct {
	// How often a sweep runs
	// If not set than default is used
	Interval time.Duration

	// How long expired session tokens are kept before deletion
	// If not set than default is used
	TokenGrace time.Duration

	// How long blacklist entries are kept
	// If not set than default is used
	BlacklistAge time.Duration
}

// Sweeper prunes the three prunable tables on a timer: expired otp codes,
// session tokens past expiry plus grace, aged blacklist entries. It also
// materializes time based token expiry so revocation reads stay cheap.
type Sweeper struct {
	interval     time.Duration
	tokenGrace   time.Duration
	blacklistAge time.Duration

	storage repository.Storage
	logger  logger.Logger
}

func New(cfg Config, storage repository.Storage, l logger.Logger) (*Sweeper, error) {
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.TokenGrace == 0 {
		cfg.TokenGrace = defaultTokenGrace
	}
	if cfg.BlacklistAge == 0 {
		cfg.BlacklistAge = defaultBlacklistAge
	}

	return &Sweeper{
		interval:     cfg.Interval,
		tokenGrace:   cfg.TokenGrace,
		blacklistAge: cfg.BlacklistAge,
		storage:      storage,
		logger:       l,
	}, nil
}

// Run sweeps on the configured interval until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pruning pass. Failures are logged, a failed table
// does not stop the others.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := time.Now()

	otps, err := s.storage.OTP().DeleteExpiredBefore(ctx, now)
	if err != nil {
		s.logger.Error("sweep of otp codes failed", "error", err.Error())
	}

	marked, err := s.storage.Token().MarkExpiredBefore(ctx, now)
	if err != nil {
		s.logger.Error("marking expired session tokens failed", "error", err.Error())
	}

	tokens, err := s.storage.Token().DeleteExpiredBefore(ctx, now.Add(-s.tokenGrace))
	if err != nil {
		s.logger.Error("sweep of session tokens failed", "error", err.Error())
	}

	blacklisted, err := s.storage.Blacklist().DeleteOlderThan(ctx, now.Add(-s.blacklistAge))
	if err != nil {
		s.logger.Error("sweep of token blacklist failed", "error", err.Error())
	}

	s.logger.Debug("sweep finished",
		"otp_codes", otps,
		"tokens_marked_expired", marked,
		"tokens_deleted", tokens,
		"blacklist_deleted", blacklisted,
	)
}
