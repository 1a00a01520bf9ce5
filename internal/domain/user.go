package domain

import "time"

const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)

type User struct {
	UserID         string    `json:"id" dynamodbav:"user_id"`
	Name           string    `json:"name" dynamodbav:"name"`
	Email          string    `json:"email" dynamodbav:"email"`
	PasswordHash   string    `json:"-" dynamodbav:"password_hash"`
	MonthlyBudget  float64   `json:"monthlyBudget" dynamodbav:"monthly_budget"`
	AuthProvider   string    `json:"authProvider,omitempty" dynamodbav:"auth_provider"` // "local" | "google"
	GoogleSub      string    `json:"-" dynamodbav:"google_sub,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty" dynamodbav:"profile_picture"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// PublicUser is the projection returned to clients.
type PublicUser struct {
	ID             string    `json:"_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	MonthlyBudget  float64   `json:"monthlyBudget"`
	AuthProvider   string    `json:"authProvider,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:             u.UserID,
		Name:           u.Name,
		Email:          u.Email,
		MonthlyBudget:  u.MonthlyBudget,
		AuthProvider:   u.AuthProvider,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt,
	}
}

type RegisterRequest struct {
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=6,max=72"`
	VerificationToken string `json:"verificationToken" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1"`
}

type UpdateBudgetRequest struct {
	MonthlyBudget *float64 `json:"monthlyBudget" validate:"required,gte=0"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric"`
}

type GoogleLoginRequest struct {
	Credential string `json:"credential" validate:"required"`
}

type ChangeEmailRequest struct {
	NewEmail string `json:"newEmail" validate:"required,email"`
}

type ChangeEmailVerifyRequest struct {
	NewEmail string `json:"newEmail" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,numeric"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

type DeleteAccountVerifyRequest struct {
	OTP string `json:"otp" validate:"required,numeric"`
}

// AuthResult is returned by every sign-in path.
type AuthResult struct {
	Token string      `json:"token"`
	User  *PublicUser `json:"user"`
}
