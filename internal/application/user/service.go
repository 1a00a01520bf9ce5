package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/finance-tracker/internal/application/otp"
	"github.com/finance-tracker/internal/domain"
	"github.com/finance-tracker/internal/pkg/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldName          = "name"
	fieldMonthlyBudget = "monthly_budget"
	fieldPasswordHash  = "password_hash"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.PublicUser, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.PublicUser, error)
	UpdateBudget(ctx context.Context, userID string, budget float64) (*domain.PublicUser, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	RequestEmailChange(ctx context.Context, userID, newEmail string) (*domain.IssuedCode, error)
	VerifyEmailChange(ctx context.Context, userID, newEmail, code string) (*domain.PublicUser, error)
	RequestAccountDeletion(ctx context.Context, userID, password string) (*domain.IssuedCode, error)
	VerifyAccountDeletion(ctx context.Context, userID, code string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	ExistsForOtherUser(ctx context.Context, email, excludeID string) (bool, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	UpdateEmail(ctx context.Context, userID, email string) error
	Delete(ctx context.Context, userID string) error
}

type transactionStore interface {
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

type service struct {
	repo   userStore
	txRepo transactionStore
	otps   otp.Service
	log    *logrus.Logger
}

type ServiceDeps struct {
	UserRepo        userStore
	TransactionRepo transactionStore
	OTPService      otp.Service
	Logger          *logrus.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:   deps.UserRepo,
		txRepo: deps.TransactionRepo,
		otps:   deps.OTPService,
		log:    deps.Logger,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

func (s *service) Get(ctx context.Context, userID string) (*domain.PublicUser, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.PublicUser, error) {
	if req.Name == nil {
		return s.Get(ctx, userID)
	}
	name := strings.TrimSpace(*req.Name)
	if name == "" {
		return nil, fmt.Errorf("name cannot be empty: %w", domain.ErrBadRequest)
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldName: name}); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *service) UpdateBudget(ctx context.Context, userID string, budget float64) (*domain.PublicUser, error) {
	if budget < 0 {
		return nil, fmt.Errorf("budget cannot be negative: %w", domain.ErrBadRequest)
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldMonthlyBudget: budget}); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("account signs in with google and has no password: %w", domain.ErrBadRequest)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: string(hash)})
}

func (s *service) RequestEmailChange(ctx context.Context, userID, newEmail string) (*domain.IssuedCode, error) {
	newEmail = domain.NormalizeEmail(newEmail)
	if !validate.Email(newEmail) {
		return nil, fmt.Errorf("please provide a valid email address: %w", domain.ErrBadRequest)
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Email == newEmail {
		return nil, fmt.Errorf("new email is the same as the current one: %w", domain.ErrBadRequest)
	}
	if err := s.ensureEmailFree(ctx, newEmail, userID); err != nil {
		return nil, err
	}
	return s.otps.RequestCode(ctx, otp.IssueRequest{
		Email:   newEmail,
		Purpose: domain.PurposeEmailChange,
		UserID:  userID,
	})
}

func (s *service) VerifyEmailChange(ctx context.Context, userID, newEmail, code string) (*domain.PublicUser, error) {
	newEmail = domain.NormalizeEmail(newEmail)
	err := s.otps.VerifyCode(ctx, otp.VerifyRequest{
		Email:   newEmail,
		Code:    code,
		Purpose: domain.PurposeEmailChange,
		UserID:  userID,
	}, func(ctx context.Context, rec *domain.OTP) error {
		// Another account may have claimed the address since the code was sent.
		if err := s.ensureEmailFree(ctx, rec.Email, userID); err != nil {
			return err
		}
		return s.repo.UpdateEmail(ctx, userID, rec.Email)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "email": newEmail}).Info("email changed")
	return s.Get(ctx, userID)
}

func (s *service) RequestAccountDeletion(ctx context.Context, userID, password string) (*domain.IssuedCode, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.PasswordHash != "" {
		if password == "" {
			return nil, fmt.Errorf("password is required: %w", domain.ErrBadRequest)
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			return nil, fmt.Errorf("incorrect password: %w", domain.ErrUnauthorized)
		}
	}
	return s.otps.RequestCode(ctx, otp.IssueRequest{
		Email:   u.Email,
		Purpose: domain.PurposeAccountDeletion,
		UserID:  userID,
	})
}

func (s *service) VerifyAccountDeletion(ctx context.Context, userID, code string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.otps.VerifyCode(ctx, otp.VerifyRequest{
		Email:   u.Email,
		Code:    code,
		Purpose: domain.PurposeAccountDeletion,
		UserID:  userID,
	}, func(ctx context.Context, _ *domain.OTP) error {
		n, err := s.txRepo.DeleteByUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, userID); err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{"user_id": userID, "transactions": n}).Info("account deleted")
		return nil
	})
}

func (s *service) ensureEmailFree(ctx context.Context, email, userID string) error {
	taken, err := s.repo.ExistsForOtherUser(ctx, email, userID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("email already in use: %w", domain.ErrConflict)
	}
	return nil
}
