package http

import (
	"context"

	"github.com/finance-tracker/internal/application/otp"
	"github.com/finance-tracker/internal/infrastructure/dynamo"
	googleinfra "github.com/finance-tracker/internal/infrastructure/google"
	jwtinfra "github.com/finance-tracker/internal/infrastructure/jwt"
	s3infra "github.com/finance-tracker/internal/infrastructure/s3"
	"github.com/sirupsen/logrus"
)

// CodeChannel delivers verification codes and reports its own readiness.
// Implemented by the SMTP mailer and the SNS publisher.
type CodeChannel interface {
	otp.Channel
	Ping(ctx context.Context) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo        *dynamo.UserRepo
	TransactionRepo *dynamo.TransactionRepo
	OTPStore        otp.Store // DynamoDB or Redis
	Channel         CodeChannel
	ExportStore     *s3infra.Store
	JWTProvider     *jwtinfra.Provider
	GoogleVerifier  *googleinfra.Verifier
	Logger          *logrus.Logger
}
