package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// OTP workflow errors. All are recoverable by the caller; ErrAttemptsExceeded
// requires a fresh code request.
var (
	ErrRateLimited      = errors.New("please wait before requesting another code")
	ErrDeliveryFailed   = errors.New("verification code could not be delivered")
	ErrOTPNotFound      = errors.New("code expired or not found, request a new one")
	ErrOTPExpired       = errors.New("code expired, request a new one")
	ErrAttemptsExceeded = errors.New("maximum verification attempts exceeded, request a new code")
	ErrInvalidCode      = errors.New("invalid code")
)

// RateLimitError is returned when a code was issued for the email within the resend cooldown.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %ds)", ErrRateLimited, int(e.RetryAfter.Round(time.Second).Seconds()))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// InvalidCodeError reports a mismatched submission and how many attempts remain.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("%s, %d attempt(s) left", ErrInvalidCode, e.AttemptsRemaining)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }
