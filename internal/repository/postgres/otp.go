package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/akratov/phoneauth/internal/apperrors"
	"github.com/akratov/phoneauth/internal/models"
)

type OTPRepo struct {
	DB DBTX
}

const deleteUnverifiedOTP = `-- name: DeleteUnverified otp codes for phone
DELETE FROM otp_codes
WHERE phone = $1 AND NOT verified
`

func (r *OTPRepo) DeleteUnverified(ctx context.Context, phone string) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteUnverifiedOTP, phone)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const createOTP = `-- name: Create otp code
INSERT INTO otp_codes (id, phone, code, created_at, expires_at, verified, attempts)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, phone, code, created_at, expires_at, verified, attempts
`

func (r *OTPRepo) Create(ctx context.Context, otp models.OTPCode) (models.OTPCode, error) {
	rows, _ := r.DB.Query(ctx, createOTP,
		otp.ID, otp.Phone, otp.Code, otp.CreatedAt, otp.ExpiresAt, otp.Verified, otp.Attempts,
	)
	created, err := pgx.CollectOneRow(rows, rowToOTP)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

const getLatestUnverifiedOTP = `-- name: GetLatestUnverified otp code for phone
SELECT id, phone, code, created_at, expires_at, verified, attempts
FROM otp_codes
WHERE phone = $1 AND NOT verified
ORDER BY created_at DESC
LIMIT 1
FOR UPDATE
`

// Get the newest unverified code for phone
// Takes a row lock so concurrent verify calls line up: attempts increments stay linear
func (r *OTPRepo) GetLatestUnverified(ctx context.Context, phone string) (models.OTPCode, error) {
	rows, _ := r.DB.Query(ctx, getLatestUnverifiedOTP, phone)
	otp, err := pgx.CollectOneRow(rows, rowToOTP)

	switch {
	case err == nil:
		return otp, nil
	case errors.Is(err, pgx.ErrNoRows):
		return otp, fmt.Errorf("repo error: %w", apperrors.ErrOTPNotFound)
	default:
		return otp, fmt.Errorf("db error: %w", err)
	}
}

const updateOTP = `-- name: Update otp code state
UPDATE otp_codes
SET verified = $2, attempts = $3
WHERE id = $1
RETURNING id, phone, code, created_at, expires_at, verified, attempts
`

func (r *OTPRepo) Update(ctx context.Context, otp models.OTPCode) (models.OTPCode, error) {
	rows, _ := r.DB.Query(ctx, updateOTP, otp.ID, otp.Verified, otp.Attempts)
	updated, err := pgx.CollectOneRow(rows, rowToOTP)

	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, pgx.ErrNoRows):
		return updated, fmt.Errorf("repo error: %w", apperrors.ErrOTPNotFound)
	default:
		return updated, fmt.Errorf("db error: %w", err)
	}
}

const deleteExpiredOTP = `-- name: DeleteExpiredBefore otp codes
DELETE FROM otp_codes
WHERE expires_at < $1
`

func (r *OTPRepo) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredOTP, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToOTP(row pgx.CollectableRow) (models.OTPCode, error) {
	var o models.OTPCode
	err := row.Scan(&o.ID, &o.Phone, &o.Code, &o.CreatedAt, &o.ExpiresAt, &o.Verified, &o.Attempts)
	return o, err
}
