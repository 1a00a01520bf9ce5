package handler

import (
	"net/http"

	"github.com/finance-tracker/internal/application/auth"
	"github.com/finance-tracker/internal/domain"
	"github.com/finance-tracker/internal/transport/http/middleware"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles registration, sign-in and the current-user lookup.
type AuthHandler struct {
	svc auth.Service
	log *logrus.Logger
}

func NewAuthHandler(svc auth.Service, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// SendOTP also serves resend-otp; the resend cooldown applies to both.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.SendOTPRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	issued, err := h.svc.SendRegistrationCode(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, codeSent(issued))
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	token, err := h.svc.VerifyRegistrationCode(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, VerificationEnvelope{
		Message:           "email verified",
		VerificationToken: token,
		Email:             domain.NormalizeEmail(req.Email),
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req domain.GoogleLoginRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	res, err := h.svc.Google(r.Context(), req.Credential)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
