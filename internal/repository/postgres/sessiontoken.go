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

type SessionTokenRepo struct {
	DB DBTX
}

const saveSessionToken = `-- name: Save session token
INSERT INTO session_tokens (token, principal_id, created_at, expires_at, revoked, expired)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING token, principal_id, created_at, expires_at, revoked, expired
`

func (r *SessionTokenRepo) Save(ctx context.Context, token models.SessionToken) (models.SessionToken, error) {
	rows, _ := r.DB.Query(ctx, saveSessionToken,
		token.Token, token.PrincipalID, token.CreatedAt, token.ExpiresAt, token.Revoked, token.Expired,
	)
	saved, err := pgx.CollectOneRow(rows, rowToSessionToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getSessionToken = `-- name: Get session token by value
SELECT token, principal_id, created_at, expires_at, revoked, expired
FROM session_tokens
WHERE token = $1
`

// Get token row whatever state it is in
// Validity decisions belong to the token engine, not the repo
func (r *SessionTokenRepo) Get(ctx context.Context, tokenString string) (models.SessionToken, error) {
	rows, _ := r.DB.Query(ctx, getSessionToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToSessionToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotRecognized)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const revokeSessionToken = `-- name: Revoke session token
UPDATE session_tokens
SET revoked = TRUE
WHERE token = $1
RETURNING token, principal_id, created_at, expires_at, revoked, expired
`

// Revoke token. Idempotent: revoking twice keeps revoked = true
func (r *SessionTokenRepo) Revoke(ctx context.Context, tokenString string) (models.SessionToken, error) {
	rows, _ := r.DB.Query(ctx, revokeSessionToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToSessionToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotRecognized)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const markExpiredSessionTokens = `-- name: MarkExpiredBefore session tokens
UPDATE session_tokens
SET expired = TRUE
WHERE expires_at < $1 AND NOT expired
`

func (r *SessionTokenRepo) MarkExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, markExpiredSessionTokens, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const deleteExpiredSessionTokens = `-- name: DeleteExpiredBefore session tokens
DELETE FROM session_tokens
WHERE expires_at < $1
`

func (r *SessionTokenRepo) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredSessionTokens, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToSessionToken(row pgx.CollectableRow) (models.SessionToken, error) {
	var t models.SessionToken
	err := row.Scan(&t.Token, &t.PrincipalID, &t.CreatedAt, &t.ExpiresAt, &t.Revoked, &t.Expired)
	return t, err
}
