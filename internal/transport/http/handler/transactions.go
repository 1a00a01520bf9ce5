package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/finance-tracker/internal/application/transaction"
	"github.com/finance-tracker/internal/domain"
	"github.com/finance-tracker/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// TransactionHandler handles the caller's income and expense records.
type TransactionHandler struct {
	svc transaction.Service
	log *logrus.Logger
}

func NewTransactionHandler(svc transaction.Service, log *logrus.Logger) *TransactionHandler {
	return &TransactionHandler{svc: svc, log: log}
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *TransactionHandler) Month(w http.ResponseWriter, r *http.Request) {
	year, errY := strconv.Atoi(chi.URLParam(r, "year"))
	month, errM := strconv.Atoi(chi.URLParam(r, "month"))
	if errY != nil || errM != nil {
		writeServiceError(w, h.log, fmt.Errorf("invalid year or month: %w", domain.ErrBadRequest))
		return
	}
	txs, err := h.svc.ListMonth(r.Context(), middleware.UserID(r.Context()), year, month)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *TransactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTransactionRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	t, err := h.svc.Create(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateTransactionRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	t, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "transaction removed"})
}

func (h *TransactionHandler) Export(w http.ResponseWriter, r *http.Request) {
	exp, err := h.svc.Export(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}
