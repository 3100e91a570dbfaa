package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/akratov/phoneauth/internal/models"
)

type BlacklistRepo struct {
	DB DBTX
}

const addBlacklistEntry = `-- name: Add token to blacklist
INSERT INTO token_blacklist (token, blacklisted_at)
VALUES ($1, $2)
ON CONFLICT (token) DO UPDATE SET token = EXCLUDED.token
RETURNING token, blacklisted_at
`

// Add token to the blacklist
// Idempotent: on duplicate the original blacklisted_at is kept
func (r *BlacklistRepo) Add(ctx context.Context, tokenString string) (models.BlacklistEntry, error) {
	rows, _ := r.DB.Query(ctx, addBlacklistEntry, tokenString, time.Now())
	entry, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.BlacklistEntry, error) {
		var e models.BlacklistEntry
		err := row.Scan(&e.Token, &e.BlacklistedAt)
		return e, err
	})
	if err != nil {
		return entry, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

const containsBlacklistEntry = `-- name: Contains token in blacklist
SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE token = $1)
`

func (r *BlacklistRepo) Contains(ctx context.Context, tokenString string) (bool, error) {
	var found bool
	err := r.DB.QueryRow(ctx, containsBlacklistEntry, tokenString).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return found, nil
}

const deleteOldBlacklistEntries = `-- name: DeleteOlderThan blacklist entries
DELETE FROM token_blacklist
WHERE blacklisted_at < $1
`

func (r *BlacklistRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteOldBlacklistEntries, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
