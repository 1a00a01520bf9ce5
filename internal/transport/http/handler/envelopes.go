package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/finance-tracker/internal/domain"
	"github.com/finance-tracker/internal/pkg/validate"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorCode    int    `json:"error_code,omitempty"`
	RetryAfter   *int   `json:"retry_after,omitempty"`
	AttemptsLeft *int   `json:"attempts_left,omitempty"`
}

// CodeSentEnvelope confirms a verification code was issued. The code itself
// never appears in a response.
type CodeSentEnvelope struct {
	Message   string `json:"message"`
	Email     string `json:"email"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

// VerificationEnvelope carries the short-lived registration assertion.
type VerificationEnvelope struct {
	Message           string `json:"message"`
	VerificationToken string `json:"verificationToken"`
	Email             string `json:"email"`
}

func codeSent(ic *domain.IssuedCode) CodeSentEnvelope {
	return CodeSentEnvelope{
		Message:   "verification code sent",
		Email:     ic.Email,
		ExpiresIn: int(ic.ExpiresIn / time.Second),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: status})
}

// decode reads a JSON body into v and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", domain.ErrBadRequest)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	return nil
}

// writeServiceError maps domain errors to HTTP responses. Unknown errors are
// logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, log *logrus.Logger, err error) {
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		secs := int((rl.RetryAfter + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, MessageEnvelope{
			Error:      domain.ErrRateLimited.Error(),
			ErrorCode:  http.StatusTooManyRequests,
			RetryAfter: &secs,
		})
		return
	}
	var ic *domain.InvalidCodeError
	if errors.As(err, &ic) {
		left := ic.AttemptsRemaining
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{
			Error:        ic.Error(),
			ErrorCode:    http.StatusBadRequest,
			AttemptsLeft: &left,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
	case errors.Is(err, domain.ErrOTPNotFound),
		errors.Is(err, domain.ErrOTPExpired),
		errors.Is(err, domain.ErrAttemptsExceeded):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDeliveryFailed):
		writeError(w, http.StatusServiceUnavailable, domain.ErrDeliveryFailed.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, publicMessage(err, domain.ErrBadRequest))
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, publicMessage(err, domain.ErrUnauthorized))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, publicMessage(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, publicMessage(err, domain.ErrConflict))
	default:
		log.WithError(err).Error("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// publicMessage drops the trailing sentinel text added by %w wrapping.
func publicMessage(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
