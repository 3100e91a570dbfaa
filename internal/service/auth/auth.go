package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/akratov/phoneauth/internal/models"
	"github.com/akratov/phoneauth/internal/repository"
	"github.com/akratov/phoneauth/internal/service/otp"
	"github.com/akratov/phoneauth/internal/service/token"
)

var (
	// Header absent: the request is anonymous, not invalid
	ErrNoBearerToken = errors.New("no bearer token in request")

	// Header present but not a bearer credential
	ErrMalformedBearer = errors.New("malformed authorization header")
)

// Service glues the OTP engine, the token engine and the principal registry
// into the login flow: verified phone -> principal -> signed session token.
type Service struct {
	otp     *otp.Service
	tokens  *token.Engine
	storage repository.Storage
}

func NewService(otpService *otp.Service, tokenEngine *token.Engine, storage repository.Storage) (*Service, error) {
	if otpService == nil || tokenEngine == nil || storage == nil {
		return nil, errors.New("otp service, token engine and storage must not be nil")
	}

	return &Service{
		otp:     otpService,
		tokens:  tokenEngine,
		storage: storage,
	}, nil
}

// SendCode issues and dispatches a fresh one-time code for the phone
func (s *Service) SendCode(ctx context.Context, phone string) (models.OTPCode, error) {
	return s.otp.Issue(ctx, phone)
}

// VerifyCode checks the submitted code and, on success, logs the phone in:
// the principal is created on first contact (phone-only signup) and a fresh
// session token is issued for it.
func (s *Service) VerifyCode(ctx context.Context, phone string, code string) (models.Principal, models.IssuedToken, error) {
	if _, err := s.otp.Verify(ctx, phone, code); err != nil {
		return models.Principal{}, models.IssuedToken{}, err
	}

	principal, err := s.storage.Principal().GetOrCreateByPhone(ctx, phone)
	if err != nil {
		return models.Principal{}, models.IssuedToken{}, err
	}

	issued, err := s.tokens.Issue(ctx, principal)
	if err != nil {
		return models.Principal{}, models.IssuedToken{}, err
	}

	return principal, issued, nil
}

// Logout invalidates the presented token on both paths: the session token row
// is revoked and the value lands on the blacklist, so the rejection does not
// depend on which store a later check reads first.
// Returns apperrors.ErrTokenNotRecognized if the token was never issued here.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	if err := s.tokens.Revoke(ctx, tokenString); err != nil {
		return err
	}
	return s.tokens.Blacklist(ctx, tokenString)
}

// PrincipalByToken validates the token and materializes the principal it is bound to
func (s *Service) PrincipalByToken(ctx context.Context, tokenString string) (models.Principal, error) {
	principalID, err := s.tokens.Validate(ctx, tokenString)
	if err != nil {
		return models.Principal{}, err
	}

	return s.storage.Principal().GetByID(ctx, principalID)
}

// BearerFromRequest extracts the bearer credential from the standard header.
// ErrNoBearerToken when the header is absent, ErrMalformedBearer when it is
// present but not a bearer credential.
func (s *Service) BearerFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoBearerToken
	}

	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return "", ErrMalformedBearer
	}

	return tokenString, nil
}
