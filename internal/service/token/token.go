package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/akratov/phoneauth/internal/apperrors"
	"github.com/akratov/phoneauth/internal/models"
	"github.com/akratov/phoneauth/internal/repository"
)

const (
	defaultSessionTokenTTL = 24 * time.Hour
	defaultSigningMethod   = "HS256"
)

type SessionClaims struct {
	jwt.RegisteredClaims
	PrincipalID uuid.UUID `json:"pid"`
}

// Token engine with sensible defaults
type Config struct {
	// Secret key to sign session token payload
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Session token lifetime
	// If not set than default is used
	SessionTTL time.Duration
}

// Engine issues signed bearer tokens and decides their validity.
//
// Validity combines two independent checks: the signature must verify and the
// token must be present and live in the store. The store lookup is never
// skipped: a token signed with the same key by another process was still never
// issued here and must be rejected.
type Engine struct {
	key        string
	alg        jwt.SigningMethod
	sessionTTL time.Duration

	storage repository.Storage
}

func New(cfg Config, storage repository.Storage) (*Engine, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTokenTTL
	}

	return &Engine{
		key:        cfg.SecretKey,
		alg:        jwt.GetSigningMethod(cfg.Alg),
		sessionTTL: cfg.SessionTTL,
		storage:    storage,
	}, nil
}

// Issue a signed session token for the principal and persist its store row.
// Multiple live tokens per principal are fine (multi device).
func (e *Engine) Issue(ctx context.Context, principal models.Principal) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(e.sessionTTL)

	sessionToken := jwt.NewWithClaims(
		e.alg,
		SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			PrincipalID: principal.ID,
		},
	)
	signed, err := sessionToken.SignedString([]byte(e.key))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing session token. Err: %w", err)
	}

	_, err = e.storage.Token().Save(ctx, models.SessionToken{
		Token:       signed,
		PrincipalID: principal.ID,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
		Revoked:     false,
		Expired:     false,
	})
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while saving session token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Revoke sets the revoked flag on the stored token (logout path)
// Returns apperrors.ErrTokenNotRecognized if the token was never issued here
func (e *Engine) Revoke(ctx context.Context, tokenString string) error {
	_, err := e.storage.Token().Revoke(ctx, tokenString)
	if err != nil {
		return fmt.Errorf("error while revoking session token. Err: %w", err)
	}
	return nil
}

// Blacklist invalidates the token without touching its session token row.
// Works even for tokens the primary store never tracked (bulk admin invalidation).
func (e *Engine) Blacklist(ctx context.Context, tokenString string) error {
	_, err := e.storage.Blacklist().Add(ctx, tokenString)
	if err != nil {
		return fmt.Errorf("error while blacklisting session token. Err: %w", err)
	}
	return nil
}

// Validate the token and return the principal id bound to it.
//
// Check order: signature, store presence, revoked/expired state, blacklist.
// Every failure maps onto one of the apperrors token sentinels.
func (e *Engine) Validate(ctx context.Context, tokenString string) (uuid.UUID, error) {
	claims := &SessionClaims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(e.key), nil },
		jwt.WithValidMethods([]string{e.alg.Alg()}),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, fmt.Errorf("%w: %w", apperrors.ErrTokenRevokedOrExpired, err)
	default:
		return uuid.Nil, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalidSignature, err)
	}

	stored, err := e.storage.Token().Get(ctx, tokenString)
	if err != nil {
		return uuid.Nil, err
	}

	if stored.Revoked || stored.Expired || time.Now().After(stored.ExpiresAt) {
		return uuid.Nil, fmt.Errorf("token check failed: %w", apperrors.ErrTokenRevokedOrExpired)
	}

	blacklisted, err := e.storage.Blacklist().Contains(ctx, tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	if blacklisted {
		return uuid.Nil, fmt.Errorf("token is blacklisted: %w", apperrors.ErrTokenRevokedOrExpired)
	}

	return claims.PrincipalID, nil
}
