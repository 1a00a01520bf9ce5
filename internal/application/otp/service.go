package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/finance-tracker/internal/domain"
	pkgtoken "github.com/finance-tracker/internal/pkg/token"
	"github.com/sirupsen/logrus"
)

// Store persists OTP challenges, at most one per email. Every mutation is a
// single conditional write so concurrent requests for the same email cannot
// lose updates. version is the CreatedAt of the record the caller read.
type Store interface {
	// Create writes rec unless an unverified record for the same email was
	// created less than cooldown ago, in which case it returns a
	// *domain.RateLimitError. Older or spent records are superseded.
	Create(ctx context.Context, rec *domain.OTP, cooldown time.Duration) error
	// Get returns the current record for email or a domain.ErrNotFound-wrapped error.
	Get(ctx context.Context, email string) (*domain.OTP, error)
	// IncrementAttempts adds one failed attempt while the record still has
	// this version and fewer than max attempts. Returns the new count or a
	// domain.ErrConflict-wrapped error when the condition does not hold.
	IncrementAttempts(ctx context.Context, email string, version time.Time, max int) (int, error)
	// MarkVerified flags the record spent while it has this version, is
	// unverified and below max attempts; domain.ErrConflict otherwise.
	MarkVerified(ctx context.Context, email string, version time.Time, max int) error
	// Delete removes the record only if it still has this version.
	Delete(ctx context.Context, email string, version time.Time) error
}

// Channel delivers a code to its recipient. The transport is opaque.
type Channel interface {
	Deliver(ctx context.Context, email, code string, purpose domain.Purpose) error
}

// Completion is the purpose-specific action run once a code has matched.
// The record is already flagged verified when it runs and is deleted afterwards
// whatever the outcome.
type Completion func(ctx context.Context, rec *domain.OTP) error

type IssueRequest struct {
	Email   string
	Purpose domain.Purpose
	UserID  string
}

type VerifyRequest struct {
	Email   string
	Code    string
	Purpose domain.Purpose
	UserID  string
}

type Config struct {
	Length         int
	Expiry         time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

type Service interface {
	RequestCode(ctx context.Context, req IssueRequest) (*domain.IssuedCode, error)
	VerifyCode(ctx context.Context, req VerifyRequest, complete Completion) error
}

type ServiceDeps struct {
	Store   Store
	Channel Channel
	Config  Config
	Logger  *logrus.Logger
	// Optional; default to time.Now and pkg/token.
	Now      func() time.Time
	Generate func(length int) (string, error)
}

type service struct {
	store    Store
	channel  Channel
	cfg      Config
	log      *logrus.Logger
	now      func() time.Time
	generate func(length int) (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:    deps.Store,
		channel:  deps.Channel,
		cfg:      deps.Config,
		log:      deps.Logger,
		now:      deps.Now,
		generate: deps.Generate,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generate == nil {
		s.generate = pkgtoken.NewNumericCode
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

func (s *service) RequestCode(ctx context.Context, req IssueRequest) (*domain.IssuedCode, error) {
	if !req.Purpose.Valid() {
		return nil, fmt.Errorf("unknown purpose %q: %w", req.Purpose, domain.ErrBadRequest)
	}
	email := domain.NormalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("email required: %w", domain.ErrBadRequest)
	}
	code, err := s.generate(s.cfg.Length)
	if err != nil {
		return nil, err
	}
	// Stores keep millisecond precision; the version must round-trip.
	now := s.now().UTC().Truncate(time.Millisecond)
	rec := &domain.OTP{
		Email:     email,
		Code:      code,
		Purpose:   req.Purpose,
		UserID:    req.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Expiry),
	}
	if err := s.store.Create(ctx, rec, s.cfg.ResendCooldown); err != nil {
		return nil, err
	}

	if err := s.channel.Deliver(ctx, email, code, req.Purpose); err != nil {
		// The record stays so the user can retry once the cooldown passes.
		s.log.WithError(err).WithFields(logrus.Fields{
			"email":   email,
			"purpose": req.Purpose,
		}).Error("otp delivery failed")
		return nil, domain.ErrDeliveryFailed
	}
	s.log.WithFields(logrus.Fields{"email": email, "purpose": req.Purpose}).Info("otp issued")
	return &domain.IssuedCode{Email: email, ExpiresIn: s.cfg.Expiry}, nil
}

func (s *service) VerifyCode(ctx context.Context, req VerifyRequest, complete Completion) error {
	email := domain.NormalizeEmail(req.Email)
	rec, err := s.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrOTPNotFound
		}
		return err
	}
	if rec.Verified || rec.Purpose != req.Purpose || rec.UserID != req.UserID {
		return domain.ErrOTPNotFound
	}
	if rec.Attempts >= s.cfg.MaxAttempts {
		s.discard(ctx, rec)
		return domain.ErrAttemptsExceeded
	}
	// Store TTL is eventual; expiry is always enforced here.
	if !s.now().Before(rec.CreatedAt.Add(s.cfg.Expiry)) {
		s.discard(ctx, rec)
		return domain.ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(req.Code)) != 1 {
		attempts, err := s.store.IncrementAttempts(ctx, email, rec.CreatedAt, s.cfg.MaxAttempts)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return s.lostRace(ctx, rec)
			}
			return err
		}
		return &domain.InvalidCodeError{AttemptsRemaining: max(s.cfg.MaxAttempts-attempts, 0)}
	}

	if err := s.store.MarkVerified(ctx, email, rec.CreatedAt, s.cfg.MaxAttempts); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.lostRace(ctx, rec)
		}
		return err
	}
	rec.Verified = true
	defer s.discard(ctx, rec)

	if complete == nil {
		return nil
	}
	return complete(ctx, rec)
}

// lostRace resolves a failed conditional write: a concurrent request either
// exhausted the record or consumed/superseded it.
func (s *service) lostRace(ctx context.Context, seen *domain.OTP) error {
	cur, err := s.store.Get(ctx, seen.Email)
	if err == nil && cur.CreatedAt.Equal(seen.CreatedAt) && !cur.Verified && cur.Attempts >= s.cfg.MaxAttempts {
		s.discard(ctx, cur)
		return domain.ErrAttemptsExceeded
	}
	return domain.ErrOTPNotFound
}

func (s *service) discard(ctx context.Context, rec *domain.OTP) {
	if err := s.store.Delete(ctx, rec.Email, rec.CreatedAt); err != nil {
		s.log.WithError(err).WithField("email", rec.Email).Warn("failed to delete otp record")
	}
}
