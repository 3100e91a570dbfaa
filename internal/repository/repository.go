package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/akratov/phoneauth/internal/models"
)

// OTP code repository interface
type OTPRepo interface {
	// Delete every unverified code for phone
	// Called before creating a fresh one so only one code is actionable per phone
	DeleteUnverified(ctx context.Context, phone string) (deleted int64, err error)

	// Persist a fresh code record
	Create(ctx context.Context, otp models.OTPCode) (models.OTPCode, error)

	// Return the most recent unverified code for phone, newest first
	// Must lock the row for the rest of the transaction when the store supports it
	// If nothing found must return apperrors.ErrOTPNotFound
	GetLatestUnverified(ctx context.Context, phone string) (models.OTPCode, error)

	// Persist mutated attempts/verified state of the record
	Update(ctx context.Context, otp models.OTPCode) (models.OTPCode, error)

	// Delete records that expired before the given time, returns deleted count
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// Session token repository interface
type SessionTokenRepo interface {
	// Save issued token
	Save(ctx context.Context, token models.SessionToken) (models.SessionToken, error)

	// Return the token row whatever state it is in
	// If the token was never saved must return apperrors.ErrTokenNotRecognized
	Get(ctx context.Context, tokenString string) (models.SessionToken, error)

	// Set revoked flag. Idempotent: revoking a revoked token is not an error
	// If the token was never saved must return apperrors.ErrTokenNotRecognized
	Revoke(ctx context.Context, tokenString string) (models.SessionToken, error)

	// Materialize time based expiry so revocation queries stay cheap
	MarkExpiredBefore(ctx context.Context, before time.Time) (int64, error)

	// Delete tokens that expired before the given time (expiry + grace period)
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// Token blacklist repository interface
type BlacklistRepo interface {
	// Append the token to the blacklist. Idempotent on duplicates
	Add(ctx context.Context, tokenString string) (models.BlacklistEntry, error)

	// Report whether the token is blacklisted
	Contains(ctx context.Context, tokenString string) (bool, error)

	// Delete entries blacklisted before the given time
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Principal repository interface
type PrincipalRepo interface {
	// Return existing principal for phone or create a fresh one
	GetOrCreateByPhone(ctx context.Context, phone string) (models.Principal, error)

	// If principal not found must return apperrors.ErrPrincipalNotFound
	GetByID(ctx context.Context, id uuid.UUID) (models.Principal, error)
	GetByPhone(ctx context.Context, phone string) (models.Principal, error)
}

// Storage aggregates all repositories over one connection source
type Storage interface {
	OTP() OTPRepo
	Token() SessionTokenRepo
	Blacklist() BlacklistRepo
	Principal() PrincipalRepo

	// Run fn inside a single database transaction
	// Repositories of the passed Storage share that transaction
	InTx(ctx context.Context, fn func(s Storage) error) error
}
