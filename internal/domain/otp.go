package domain

import (
	"strings"
	"time"
)

// Purpose is the business context an OTP challenge is issued for.
type Purpose string

const (
	PurposeRegistration    Purpose = "registration"
	PurposeEmailChange     Purpose = "email_change"
	PurposeAccountDeletion Purpose = "account_deletion"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeRegistration, PurposeEmailChange, PurposeAccountDeletion:
		return true
	}
	return false
}

// OTP is a one-time passcode challenge bound to an email address.
// There is at most one record per email; issuing a new one supersedes it.
// CreatedAt doubles as the record version for conditional writes.
type OTP struct {
	Email     string
	Code      string
	Purpose   Purpose
	UserID    string // requesting account for email change and deletion
	Verified  bool
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IssuedCode is the opaque confirmation returned by a code request.
type IssuedCode struct {
	Email     string        `json:"email"`
	ExpiresIn time.Duration `json:"-"`
}
