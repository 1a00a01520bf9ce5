package handler

import (
	"net/http"

	"github.com/finance-tracker/internal/application/user"
	"github.com/finance-tracker/internal/domain"
	"github.com/finance-tracker/internal/transport/http/middleware"
	"github.com/sirupsen/logrus"
)

// UserHandler handles profile, budget, password and the OTP-confirmed
// email change and account deletion flows for the caller.
type UserHandler struct {
	svc user.Service
	log *logrus.Logger
}

func NewUserHandler(svc user.Service, log *logrus.Logger) *UserHandler {
	return &UserHandler{svc: svc, log: log}
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateBudgetRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	u, err := h.svc.UpdateBudget(r.Context(), middleware.UserID(r.Context()), *req.MonthlyBudget)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), middleware.UserID(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
}

func (h *UserHandler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangeEmailRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	issued, err := h.svc.RequestEmailChange(r.Context(), middleware.UserID(r.Context()), req.NewEmail)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, codeSent(issued))
}

func (h *UserHandler) VerifyEmailChange(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangeEmailVerifyRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	u, err := h.svc.VerifyEmailChange(r.Context(), middleware.UserID(r.Context()), req.NewEmail, req.OTP)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) RequestAccountDeletion(w http.ResponseWriter, r *http.Request) {
	var req domain.DeleteAccountRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	issued, err := h.svc.RequestAccountDeletion(r.Context(), middleware.UserID(r.Context()), req.Password)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, codeSent(issued))
}

func (h *UserHandler) VerifyAccountDeletion(w http.ResponseWriter, r *http.Request) {
	var req domain.DeleteAccountVerifyRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if err := h.svc.VerifyAccountDeletion(r.Context(), middleware.UserID(r.Context()), req.OTP); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "account deleted"})
}
