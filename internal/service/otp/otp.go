package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akratov/phoneauth/internal/apperrors"
	"github.com/akratov/phoneauth/internal/delivery"
	"github.com/akratov/phoneauth/internal/logger"
	"github.com/akratov/phoneauth/internal/models"
	"github.com/akratov/phoneauth/internal/repository"
)

const (
	defaultCodeLength      = 6
	defaultValidityWindow  = 5 * time.Minute
	defaultMaxAttempts     = 3
	defaultDeliveryTimeout = 10 * time.Second
)

// Service with sensible defaults
type Config struct {
	// Length of the generated numeric code
	// If not set than default is used
	CodeLength int

	// How long an issued code stays verifiable
	// If not set than default is used
	ValidityWindow time.Duration

	// Failed verify calls allowed before the code locks out
	// If not set than default is used
	MaxAttempts int

	// Upper bound on a single delivery gateway call
	// If not set than default is used
	DeliveryTimeout time.Duration
}

// OTP engine: issues, re-issues and verifies one-time codes.
//
// Verify runs inside one database transaction with the code row locked, so
// concurrent guesses for the same phone serialize and the attempt counter
// cannot be raced past the limit.
type Service struct {
	codeLength      int
	validityWindow  time.Duration
	maxAttempts     int
	deliveryTimeout time.Duration

	storage repository.Storage
	gateway delivery.Gateway
	logger  logger.Logger
}

func NewService(cfg Config, storage repository.Storage, gateway delivery.Gateway, l logger.Logger) (*Service, error) {
	if storage == nil || gateway == nil {
		return nil, errors.New("storage and gateway must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	if cfg.CodeLength == 0 {
		cfg.CodeLength = defaultCodeLength
	}
	if cfg.ValidityWindow == 0 {
		cfg.ValidityWindow = defaultValidityWindow
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.DeliveryTimeout == 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}

	return &Service{
		codeLength:      cfg.CodeLength,
		validityWindow:  cfg.ValidityWindow,
		maxAttempts:     cfg.MaxAttempts,
		deliveryTimeout: cfg.DeliveryTimeout,
		storage:         storage,
		gateway:         gateway,
		logger:          l,
	}, nil
}

// Issue a fresh code for phone and dispatch delivery.
//
// Previously issued unverified codes for the phone are deleted first, so the
// new code is the only one that verifies. The record is persisted before the
// gateway call and stays usable even if delivery fails: an operator or
// alternate channel may still communicate the code.
func (s *Service) Issue(ctx context.Context, phone string) (models.OTPCode, error) {
	code, err := generateCode(s.codeLength)
	if err != nil {
		return models.OTPCode{}, err
	}

	now := time.Now()
	record := models.OTPCode{
		ID:        uuid.New(),
		Phone:     phone,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.validityWindow),
		Verified:  false,
		Attempts:  0,
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		if _, err := st.OTP().DeleteUnverified(ctx, phone); err != nil {
			return err
		}
		record, err = st.OTP().Create(ctx, record)
		return err
	})
	if err != nil {
		return models.OTPCode{}, fmt.Errorf("error while issuing otp code. Err: %w", err)
	}

	// Delivery is detached: the code row is committed already and no lock is
	// held while the provider call may hang up to the timeout
	go s.deliver(phone, code)

	return record, nil
}

// Resend is a fresh issue: new code, new expiry, attempts reset to zero,
// old unverified code invalidated
func (s *Service) Resend(ctx context.Context, phone string) (models.OTPCode, error) {
	return s.Issue(ctx, phone)
}

// Verify the submitted code for phone.
//
// Decision order, every branch terminal for this call:
//  1. no unverified record             -> ErrOTPNotFound
//  2. past expiry (attempts++)         -> ErrOTPExpired
//  3. attempts already at the limit    -> ErrOTPExhausted
//  4. wrong code (attempts++)          -> ErrOTPMismatch,
//     or ErrOTPExhausted when that attempt was the last one
//  5. match                            -> verified = true
//
// A verified record never comes back from the unverified lookup, so a code
// can not be accepted twice.
func (s *Service) Verify(ctx context.Context, phone string, code string) (models.OTPCode, error) {
	var record models.OTPCode
	var verifyErr error // domain failure, must not roll the tx back: attempt increments have to stick

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		record, err = st.OTP().GetLatestUnverified(ctx, phone)
		if err != nil {
			return err
		}

		switch {
		case time.Now().After(record.ExpiresAt):
			verifyErr = apperrors.ErrOTPExpired
			record.Attempts++
			record, err = st.OTP().Update(ctx, record)
			return err

		case record.Attempts >= s.maxAttempts:
			verifyErr = apperrors.ErrOTPExhausted
			return nil

		case record.Code != code:
			verifyErr = apperrors.ErrOTPMismatch
			record.Attempts++
			if record.Attempts >= s.maxAttempts {
				// The wrong guess that spends the last attempt already reports lockout
				verifyErr = apperrors.ErrOTPExhausted
			}
			record, err = st.OTP().Update(ctx, record)
			return err
		}

		record.Verified = true
		record, err = st.OTP().Update(ctx, record)
		return err
	})
	if err != nil {
		return record, fmt.Errorf("error while verifying otp code. Err: %w", err)
	}
	if verifyErr != nil {
		return record, fmt.Errorf("otp rejected: %w", verifyErr)
	}

	return record, nil
}

func (s *Service) deliver(phone string, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deliveryTimeout)
	defer cancel()

	message := fmt.Sprintf("Your verification code is %s", code)
	if err := s.gateway.Send(ctx, phone, message); err != nil {
		// Non fatal: the persisted code stays verifiable
		s.logger.Warn("otp delivery failed", "phone", phone, "error", err.Error())
		return
	}

	s.logger.Debug("otp delivered", "phone", phone)
}
