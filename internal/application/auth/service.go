package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finance-tracker/internal/application/otp"
	"github.com/finance-tracker/internal/domain"
	"github.com/finance-tracker/internal/infrastructure/google"
	"github.com/finance-tracker/internal/pkg/id"
	"github.com/finance-tracker/internal/pkg/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldGoogleSub      = "google_sub"
	fieldProfilePicture = "profile_picture"
)

type Service interface {
	SendRegistrationCode(ctx context.Context, email string) (*domain.IssuedCode, error)
	VerifyRegistrationCode(ctx context.Context, email, code string) (verificationToken string, err error)
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error)
	Google(ctx context.Context, credential string) (*domain.AuthResult, error)
	Me(ctx context.Context, userID string) (*domain.PublicUser, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type tokenIssuer interface {
	Sign(userID string) (string, error)
	IssueVerificationAssertion(email string) (string, error)
	RedeemVerificationAssertion(token string) (string, error)
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}

type service struct {
	users  userStore
	otps   otp.Service
	tokens tokenIssuer
	google googleVerifier
	log    *logrus.Logger
}

type ServiceDeps struct {
	UserRepo       userStore
	OTPService     otp.Service
	TokenIssuer    tokenIssuer
	GoogleVerifier googleVerifier
	Logger         *logrus.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		users:  deps.UserRepo,
		otps:   deps.OTPService,
		tokens: deps.TokenIssuer,
		google: deps.GoogleVerifier,
		log:    deps.Logger,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

func (s *service) SendRegistrationCode(ctx context.Context, email string) (*domain.IssuedCode, error) {
	email = domain.NormalizeEmail(email)
	if !validate.Email(email) {
		return nil, fmt.Errorf("please provide a valid email address: %w", domain.ErrBadRequest)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered, please login: %w", domain.ErrBadRequest)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return s.otps.RequestCode(ctx, otp.IssueRequest{Email: email, Purpose: domain.PurposeRegistration})
}

func (s *service) VerifyRegistrationCode(ctx context.Context, email, code string) (string, error) {
	var token string
	err := s.otps.VerifyCode(ctx, otp.VerifyRequest{
		Email:   email,
		Code:    code,
		Purpose: domain.PurposeRegistration,
	}, func(_ context.Context, rec *domain.OTP) error {
		var err error
		token, err = s.tokens.IssueVerificationAssertion(rec.Email)
		return err
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error) {
	email := domain.NormalizeEmail(req.Email)
	verified, err := s.tokens.RedeemVerificationAssertion(req.VerificationToken)
	if err != nil {
		return nil, err
	}
	if verified != email {
		return nil, fmt.Errorf("email mismatch with verification: %w", domain.ErrBadRequest)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("user already exists: %w", domain.ErrBadRequest)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.NewAt(now),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		AuthProvider: domain.AuthProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.UserID, "email": email}).Info("user registered")
	return s.result(u)
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return s.result(u)
}

// Google signs in with a Google ID token, creating the account on first use
// and linking an existing email account otherwise.
func (s *service) Google(ctx context.Context, credential string) (*domain.AuthResult, error) {
	if credential == "" {
		return nil, fmt.Errorf("no credential provided: %w", domain.ErrBadRequest)
	}
	p, err := s.google.Verify(ctx, credential)
	if err != nil {
		return nil, err
	}
	if !p.EmailVerified || p.Email == "" {
		return nil, fmt.Errorf("email not verified by google: %w", domain.ErrBadRequest)
	}

	if u, err := s.users.GetByGoogleSub(ctx, p.Sub); err == nil {
		return s.result(u)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
		if u.GoogleSub == "" {
			updates := map[string]interface{}{fieldGoogleSub: p.Sub}
			if p.Picture != "" {
				updates[fieldProfilePicture] = p.Picture
			}
			if err := s.users.Update(ctx, u.UserID, updates); err != nil {
				return nil, err
			}
			u.GoogleSub = p.Sub
			if p.Picture != "" {
				u.ProfilePicture = p.Picture
			}
			s.log.WithField("user_id", u.UserID).Info("google account linked")
		}
		return s.result(u)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	now := time.Now().UTC()
	name := p.Name
	if name == "" {
		name = strings.SplitN(p.Email, "@", 2)[0]
	}
	u = &domain.User{
		UserID:         id.NewAt(now),
		Name:           name,
		Email:          p.Email,
		AuthProvider:   domain.AuthProviderGoogle,
		GoogleSub:      p.Sub,
		ProfilePicture: p.Picture,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.UserID, "email": u.Email}).Info("user registered with google")
	return s.result(u)
}

func (s *service) Me(ctx context.Context, userID string) (*domain.PublicUser, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

func (s *service) result(u *domain.User) (*domain.AuthResult, error) {
	token, err := s.tokens.Sign(u.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{Token: token, User: u.Public()}, nil
}
