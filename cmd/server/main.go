package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"sportsreg/config"
	_ "sportsreg/docs"
	"sportsreg/internal/adapters/auth"
	"sportsreg/internal/adapters/email"
	delivery "sportsreg/internal/delivery/http"
	"sportsreg/internal/delivery/http/controllers"
	"sportsreg/internal/delivery/http/middleware"
	"sportsreg/internal/repository/postgres"
	"sportsreg/internal/services"
)

// @title Sports Registration API
// @version 1.0
// @description Registration review workflow for sports competition events.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger := config.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("failed to ping database", "err", err)
		os.Exit(1)
	}

	// Repositories
	regRepo := postgres.NewRegistrationRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	logRepo := postgres.NewReviewLogRepository(db)
	accountRepo := postgres.NewAccountRepository(db)

	// Adapters
	issuer, verifier := auth.NewJWTTokens(cfg.JWTSecret)
	hasher := auth.NewBcryptHasher(12)
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:             cfg.Email.SESRegion,
			AccessKeyID:        cfg.Email.SESAccessKeyID,
			SecretAccessKey:    cfg.Email.SESSecretAccessKey,
			InsecureSkipVerify: cfg.Email.SESInsecureSkipVerify,
		},
	})
	if err != nil {
		logger.Error("failed to create mailer", "err", err)
		os.Exit(1)
	}
	renderer := email.NewTemplateRenderer()

	// Services
	emailService := services.NewEmailService(mailer, renderer)
	notifier := services.NewNotificationService(regRepo, eventRepo, accountRepo, emailService, logger)
	registrationService := services.NewRegistrationService(regRepo, eventRepo, cfg.MaxActiveRegistration, cfg.ContextTimeout)
	reviewService := services.NewReviewService(regRepo, logRepo, eventRepo, notifier, logger, cfg.ContextTimeout)
	authService := services.NewAuthService(accountRepo, hasher, issuer, cfg.TokenExpiry, cfg.ContextTimeout)

	// Controllers
	registrationController := controllers.NewRegistrationController(logger, registrationService)
	reviewController := controllers.NewReviewController(logger, reviewService)
	authController := controllers.NewAuthController(logger, authService)

	mux := delivery.NewRouter(registrationController, reviewController, authController, verifier)

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.CORSAllowedOrigins, handler)
	handler = middleware.LoggingMiddleware(logger, handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
