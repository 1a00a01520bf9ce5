package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/finance-tracker/internal/config"
	"github.com/finance-tracker/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Audiences keep session tokens and verification assertions from being
// accepted in place of each other.
const (
	AudienceSession      = "finance-tracker:session"
	AudienceVerification = "finance-tracker:email-verification"
)

// Claims holds the session JWT payload fields.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// VerificationClaims asserts that Email was proven through an OTP for Purpose.
type VerificationClaims struct {
	Email   string         `json:"email"`
	Purpose domain.Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey         *rsa.PrivateKey
	publicKey          *rsa.PublicKey
	expiry             time.Duration
	verificationExpiry time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	verificationExpiry := cfg.VerificationExpiry
	if verificationExpiry == 0 {
		verificationExpiry = 15 * time.Minute
	}
	return &Provider{
		privateKey:         privKey,
		publicKey:          pubKey,
		expiry:             cfg.JWTExpiry,
		verificationExpiry: verificationExpiry,
	}, nil
}

// Sign issues a session token for userID.
func (p *Provider) Sign(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{AudienceSession},
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if err := p.parse(tokenStr, claims, AudienceSession); err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueVerificationAssertion returns a short-lived token proving email was
// verified by OTP for registration.
func (p *Provider) IssueVerificationAssertion(email string) (string, error) {
	now := time.Now()
	claims := VerificationClaims{
		Email:   email,
		Purpose: domain.PurposeRegistration,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Audience:  jwt.ClaimStrings{AudienceVerification},
			ExpiresAt: jwt.NewNumericDate(now.Add(p.verificationExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
}

// RedeemVerificationAssertion validates an assertion and returns the email it
// vouches for. Failures wrap domain.ErrUnauthorized.
func (p *Provider) RedeemVerificationAssertion(tokenStr string) (string, error) {
	claims := &VerificationClaims{}
	if err := p.parse(tokenStr, claims, AudienceVerification); err != nil {
		return "", fmt.Errorf("invalid or expired verification token: %w", domain.ErrUnauthorized)
	}
	if claims.Purpose != domain.PurposeRegistration || claims.Email == "" {
		return "", fmt.Errorf("invalid verification token: %w", domain.ErrUnauthorized)
	}
	return claims.Email, nil
}

func (p *Provider) parse(tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithAudience(audience), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token claims")
	}
	return nil
}
