package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/finance-tracker/internal/application/otp"
	"github.com/finance-tracker/internal/config"
	"github.com/finance-tracker/internal/infrastructure/dynamo"
	googleinfra "github.com/finance-tracker/internal/infrastructure/google"
	jwtinfra "github.com/finance-tracker/internal/infrastructure/jwt"
	redisinfra "github.com/finance-tracker/internal/infrastructure/redis"
	s3infra "github.com/finance-tracker/internal/infrastructure/s3"
	"github.com/finance-tracker/internal/infrastructure/smtp"
	"github.com/finance-tracker/internal/infrastructure/sns"
	"github.com/finance-tracker/internal/pkg/logging"
	transporthttp "github.com/finance-tracker/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("dynamodb client")
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, log)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.WithError(err).Fatal("jwt provider")
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("s3 client")
	}

	otpStore, err := newOTPStore(ctx, cfg, dynamoClient)
	if err != nil {
		log.WithError(err).Fatal("otp store")
	}
	channel, err := newCodeChannel(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("otp delivery channel")
	}
	if err := channel.Ping(ctx); err != nil {
		log.WithError(err).Warn("otp delivery channel not reachable at startup")
	}

	if cfg.SMTPInsecureSkipVerify && cfg.IsProduction() {
		log.Warn("SMTP_INSECURE_SKIP_VERIFY is enabled in production")
	}
	if cfg.GoogleClientID == "" {
		log.Warn("GOOGLE_CLIENT_ID not set, google sign-in disabled")
	}

	deps := &transporthttp.Deps{
		UserRepo:        dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		TransactionRepo: dynamo.NewTransactionRepo(dynamoClient, cfg.DynamoTables.Transactions, log),
		OTPStore:        otpStore,
		Channel:         channel,
		ExportStore:     s3infra.NewStore(s3Client, cfg.S3BucketName),
		JWTProvider:     jwtProvider,
		GoogleVerifier:  googleinfra.NewVerifier(cfg.GoogleClientID),
		Logger:          log,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":        cfg.AppPort,
			"env":         cfg.AppEnv,
			"otp_store":   cfg.OTP.Store,
			"otp_channel": cfg.OTP.Channel,
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}
	log.Info("server stopped")
}

func newOTPStore(ctx context.Context, cfg *config.Config, client *dynamodb.Client) (otp.Store, error) {
	switch cfg.OTP.Store {
	case "dynamo", "dynamodb", "":
		return dynamo.NewOTPRepo(client, cfg.DynamoTables.OTPs), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required when OTP_STORE=redis")
		}
		rc, err := redisinfra.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return redisinfra.NewOTPStore(rc), nil
	}
	return nil, fmt.Errorf("unknown OTP_STORE %q", cfg.OTP.Store)
}

func newCodeChannel(ctx context.Context, cfg *config.Config, log *logrus.Logger) (transporthttp.CodeChannel, error) {
	switch cfg.OTP.Channel {
	case "smtp", "":
		return smtp.NewMailer(cfg, log), nil
	case "sns":
		p, err := sns.NewPublisher(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown OTP_DELIVERY_CHANNEL %q", cfg.OTP.Channel)
}
