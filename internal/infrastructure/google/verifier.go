package google

import (
	"context"
	"fmt"

	"github.com/finance-tracker/internal/domain"
	"google.golang.org/api/idtoken"
)

// Payload holds the verified claims extracted from a Google ID token.
type Payload struct {
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Verifier verifies Google ID tokens against a specific client ID.
type Verifier struct {
	clientID string
}

func NewVerifier(clientID string) *Verifier {
	return &Verifier{clientID: clientID}
}

// Verify validates the Google ID token and returns the extracted payload.
// Returns a domain.ErrUnauthorized-wrapped error if the token is invalid.
func (v *Verifier) Verify(ctx context.Context, token string) (*Payload, error) {
	if v.clientID == "" {
		return nil, fmt.Errorf("google sign-in is not configured: %w", domain.ErrUnauthorized)
	}
	p, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", domain.ErrUnauthorized)
	}
	return payloadFromClaims(p.Subject, p.Claims), nil
}

func payloadFromClaims(sub string, claims map[string]interface{}) *Payload {
	email, _ := claims["email"].(string)
	emailVerified, _ := claims["email_verified"].(bool)
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	return &Payload{
		Sub:           sub,
		Email:         domain.NormalizeEmail(email),
		EmailVerified: emailVerified,
		Name:          name,
		Picture:       picture,
	}
}
