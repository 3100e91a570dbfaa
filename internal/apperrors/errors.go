package apperrors

import (
	"errors"
)

var (
	ErrOTPNotFound  = errors.New("no active otp code")
	ErrOTPExpired   = errors.New("otp code is expired")
	ErrOTPExhausted = errors.New("otp attempts exhausted")
	ErrOTPMismatch  = errors.New("otp code mismatch")

	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenNotRecognized    = errors.New("token not recognized")
	ErrTokenRevokedOrExpired = errors.New("token is revoked or expired")

	ErrPrincipalNotFound = errors.New("principal not found")
)
