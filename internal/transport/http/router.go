package http

import (
	"net/http"

	"github.com/finance-tracker/internal/application/auth"
	"github.com/finance-tracker/internal/application/otp"
	"github.com/finance-tracker/internal/application/transaction"
	"github.com/finance-tracker/internal/application/user"
	"github.com/finance-tracker/internal/config"
	"github.com/finance-tracker/internal/transport/http/handler"
	appmiddleware "github.com/finance-tracker/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// 5 requests/second, burst of 10. Applied to public auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:   deps.OTPStore,
		Channel: deps.Channel,
		Config: otp.Config{
			Length:         cfg.OTP.Length,
			Expiry:         cfg.OTP.Expiry,
			MaxAttempts:    cfg.OTP.MaxAttempts,
			ResendCooldown: cfg.OTP.ResendCooldown,
		},
		Logger: deps.Logger,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:       deps.UserRepo,
		OTPService:     otpSvc,
		TokenIssuer:    deps.JWTProvider,
		GoogleVerifier: deps.GoogleVerifier,
		Logger:         deps.Logger,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:        deps.UserRepo,
		TransactionRepo: deps.TransactionRepo,
		OTPService:      otpSvc,
		Logger:          deps.Logger,
	})
	txSvc := transaction.NewService(transaction.ServiceDeps{
		TransactionRepo: deps.TransactionRepo,
		UserRepo:        deps.UserRepo,
		ExportStore:     deps.ExportStore,
		ExportURLTTL:    cfg.ExportURLTTL,
		Logger:          deps.Logger,
	})

	healthH := handler.NewHealthHandler(deps.Channel)
	authH := handler.NewAuthHandler(authSvc, deps.Logger)
	userH := handler.NewUserHandler(userSvc, deps.Logger)
	txH := handler.NewTransactionHandler(txSvc, deps.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthH.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(sensitiveRL.Limit)
				r.Post("/send-otp", authH.SendOTP)
				r.Post("/resend-otp", authH.SendOTP)
				r.Post("/verify-otp", authH.VerifyOTP)
				r.Post("/register", authH.Register)
				r.Post("/login", authH.Login)
				r.Post("/google", authH.Google)
			})
			r.With(authMw).Get("/me", authH.Me)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authMw)
			r.Get("/me", userH.Get)
			r.Put("/me", userH.Update)
			r.Put("/budget", userH.UpdateBudget)
			r.Put("/password", userH.ChangePassword)
			r.With(sensitiveRL.Limit).Post("/change-email/request", userH.RequestEmailChange)
			r.Post("/change-email/verify", userH.VerifyEmailChange)
			r.With(sensitiveRL.Limit).Post("/delete-account/request", userH.RequestAccountDeletion)
			r.Post("/delete-account/verify", userH.VerifyAccountDeletion)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Use(authMw)
			r.Get("/", txH.List)
			r.Post("/", txH.Create)
			r.Get("/summary", txH.Summary)
			r.Post("/export", txH.Export)
			r.Get("/month/{year}/{month}", txH.Month)
			r.Get("/{id}", txH.Get)
			r.Put("/{id}", txH.Update)
			r.Delete("/{id}", txH.Delete)
		})
	})

	return r
}
