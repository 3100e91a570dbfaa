package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/akratov/phoneauth/internal/apperrors"
	"github.com/akratov/phoneauth/internal/models"
)

type PrincipalRepo struct {
	DB DBTX
}

const createPrincipal = `-- name: Create principal
INSERT INTO principals (id, phone, display_name)
VALUES ($1, $2, $3)
RETURNING id, created_at, phone, display_name
`

const getPrincipalByPhone = `-- name: Get principal by phone
SELECT id, created_at, phone, display_name
FROM principals
WHERE phone = $1
`

// GetOrCreateByPhone returns the principal for the phone, creating it on first contact.
// A concurrent insert for the same phone loses on the unique index and falls
// back to reading the winner's row.
func (r *PrincipalRepo) GetOrCreateByPhone(ctx context.Context, phone string) (models.Principal, error) {
	principal, err := r.GetByPhone(ctx, phone)
	if err == nil {
		return principal, nil
	}
	if !errors.Is(err, apperrors.ErrPrincipalNotFound) {
		return principal, err
	}

	rows, _ := r.DB.Query(ctx, createPrincipal, uuid.New(), phone, "")
	principal, err = pgx.CollectOneRow(rows, rowToPrincipal)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return r.GetByPhone(ctx, phone)
		}
		return principal, fmt.Errorf("db error: %w", err)
	}

	return principal, nil
}

func (r *PrincipalRepo) GetByPhone(ctx context.Context, phone string) (models.Principal, error) {
	rows, _ := r.DB.Query(ctx, getPrincipalByPhone, phone)
	principal, err := pgx.CollectOneRow(rows, rowToPrincipal)

	switch {
	case err == nil:
		return principal, nil
	case errors.Is(err, pgx.ErrNoRows):
		return principal, fmt.Errorf("repo error: %w", apperrors.ErrPrincipalNotFound)
	default:
		return principal, fmt.Errorf("db error: %w", err)
	}
}

const getPrincipalByID = `-- name: Get principal by id
SELECT id, created_at, phone, display_name
FROM principals
WHERE id = $1
`

func (r *PrincipalRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Principal, error) {
	rows, _ := r.DB.Query(ctx, getPrincipalByID, id)
	principal, err := pgx.CollectOneRow(rows, rowToPrincipal)

	switch {
	case err == nil:
		return principal, nil
	case errors.Is(err, pgx.ErrNoRows):
		return principal, fmt.Errorf("repo error: %w", apperrors.ErrPrincipalNotFound)
	default:
		return principal, fmt.Errorf("db error: %w", err)
	}
}

func rowToPrincipal(row pgx.CollectableRow) (models.Principal, error) {
	var p models.Principal
	err := row.Scan(&p.ID, &p.CreatedAt, &p.Phone, &p.DisplayName)
	return p, err
}
