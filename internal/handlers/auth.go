package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/akratov/phoneauth/internal/apperrors"
	"github.com/akratov/phoneauth/internal/handlers/render"
	"github.com/akratov/phoneauth/internal/models"
)

type authService interface {
	// Issue and dispatch a fresh one-time code for the phone
	SendCode(ctx context.Context, phone string) (models.OTPCode, error)

	// Verify the code: on success the principal exists and holds a fresh session token
	// Failure kinds: apperrors.ErrOTPNotFound, ErrOTPExpired, ErrOTPExhausted, ErrOTPMismatch
	VerifyCode(ctx context.Context, phone string, code string) (models.Principal, models.IssuedToken, error)

	// Invalidate the presented token
	// Has to return apperrors.ErrTokenNotRecognized if the token was never issued
	Logout(ctx context.Context, tokenString string) error

	// Extract bearer credential from the request
	BearerFromRequest(r *http.Request) (string, error)
}

type AuthHandler struct {
	authService authService

	// Development deployments include the issued code in the send response
	// so the flow is testable without a real SMS provider. Never set in production.
	exposeCodes bool
}

func NewAuth(as authService, exposeCodes bool) *AuthHandler {
	return &AuthHandler{authService: as, exposeCodes: exposeCodes}
}

// Handler mounts the auth routes. Only protected routes get the authenticate
// and requireAuth wrappers: send and verify are anonymous by design, and logout
// handles the presented token itself so an unknown token answers 400, not 401.
func (h *AuthHandler) Handler(authenticate, requireAuth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /otp/send", h.sendCode)
	mux.HandleFunc("POST /otp/verify", h.verifyCode)
	mux.HandleFunc("POST /logout", h.logout)
	mux.Handle("GET /me", authenticate(requireAuth(http.HandlerFunc(h.me))))

	return mux
}

func (h *AuthHandler) sendCode(w http.ResponseWriter, r *http.Request) {
	type SendCodeRequest struct {
		Phone string `json:"phone" validate:"required,phone"`
	}
	type SendCodeResponse struct {
		Message string `json:"message"`
		Code    string `json:"code,omitempty"` // development only
	}

	data, err := render.BindAndValidate[SendCodeRequest](w, r)
	if err != nil {
		return
	}

	otp, err := h.authService.SendCode(r.Context(), data.Phone)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := SendCodeResponse{Message: "Verification code sent"}
	if h.exposeCodes {
		response.Code = otp.Code
	}

	render.JSON(w, response)
}

func (h *AuthHandler) verifyCode(w http.ResponseWriter, r *http.Request) {
	type VerifyCodeRequest struct {
		Phone string `json:"phone" validate:"required,phone"`
		Code  string `json:"code" validate:"required,numeric,len=6"`
	}
	type VerifyCodeResponse struct {
		Token       string `json:"token"`
		PrincipalID string `json:"principal_id"`
		DisplayName string `json:"display_name"`
	}

	data, err := render.BindAndValidate[VerifyCodeRequest](w, r)
	if err != nil {
		return
	}

	principal, issued, err := h.authService.VerifyCode(r.Context(), data.Phone, data.Code)
	if err != nil {
		// Responses stay vague on purpose: they never confirm whether the
		// phone is known or what the stored code looks like
		switch {
		case errors.Is(err, apperrors.ErrOTPNotFound):
			render.ServiceError(w, "No verification code requested", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrOTPExpired):
			render.ServiceError(w, "Verification code expired", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrOTPExhausted):
			render.ServiceError(w, "Too many attempts, request a new code", http.StatusTooManyRequests)
		case errors.Is(err, apperrors.ErrOTPMismatch):
			render.ServiceError(w, "Wrong verification code", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, VerifyCodeResponse{
		Token:       issued.Value,
		PrincipalID: principal.ID.String(),
		DisplayName: principal.DisplayName,
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutResponse struct {
		Message string `json:"message"`
	}

	tokenString, err := h.authService.BearerFromRequest(r)
	if err != nil {
		render.ServiceError(w, "Bearer token required", http.StatusUnauthorized)
		return
	}

	err = h.authService.Logout(r.Context(), tokenString)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTokenNotRecognized):
			render.ServiceError(w, "Token not found", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, LogoutResponse{Message: "Logged out"})
}

// me returns the authenticated principal
// RequireAuth upstream guarantees the principal is bound
func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	type MeResponse struct {
		PrincipalID string `json:"principal_id"`
		Phone       string `json:"phone"`
		DisplayName string `json:"display_name"`
	}

	principal, _ := PrincipalFromContext(r.Context())

	render.JSON(w, MeResponse{
		PrincipalID: principal.ID.String(),
		Phone:       principal.Phone,
		DisplayName: principal.DisplayName,
	})
}
