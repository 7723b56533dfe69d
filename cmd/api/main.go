package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contactus-backend/config"
	_ "contactus-backend/docs" // Important for Swagger
	"contactus-backend/internal/delivery/http/middleware"
	v1 "contactus-backend/internal/delivery/http/v1"
	"contactus-backend/internal/domain"
	"contactus-backend/internal/repository/postgres"
	"contactus-backend/internal/usecase"
	"contactus-backend/pkg/auth"
	"contactus-backend/pkg/database"
	"contactus-backend/pkg/email"
	"contactus-backend/pkg/logger"
	"contactus-backend/pkg/redis"
	"contactus-backend/pkg/security"
	"contactus-backend/pkg/security/antivirus"
	"contactus-backend/pkg/storage"
	"contactus-backend/pkg/validation"
)

// @title           Contact Us API
// @version         1.0
// @description     Accepts support requests from the site contact form and relays them to the reporter, the support mailbox and the ticket tracker.
// @host            localhost:8080
// @BasePath        /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup Loggers
	logger.Init(cfg.LogLevel)
	logger.Log.Info("Starting contact backend", "port", cfg.Port, "host", cfg.AppHostName, "email_provider", cfg.EmailProvider)
	secLogger := security.InitSecurityLogger("contactus-backend", environment())
	defer secLogger.Sync()

	ctx := context.Background()
	healthChecks := map[string]usecase.HealthCheck{}

	// 3. Setup Redis (optional)
	if cfg.UpstashRedisURL != "" {
		if err := redis.Initialize(ctx, redis.Config{URL: cfg.UpstashRedisURL, Password: cfg.UpstashRedisPassword}); err != nil {
			logger.Log.Warn("Redis unavailable, rate limiting falls back to memory", "error", err)
		} else {
			defer redis.Close()
		}
		healthChecks["redis"] = redis.HealthCheck
	}

	// 4. Setup Database (optional submission log)
	var submissionRepo domain.ContactSubmissionRepository
	if cfg.DBUrl != "" {
		dbPool, err := database.NewPostgresConnection(ctx, cfg.DBUrl)
		if err != nil {
			logger.Log.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := database.EnsureSchema(ctx, dbPool); err != nil {
			logger.Log.Error("Failed to prepare database schema", "error", err)
			os.Exit(1)
		}
		submissionRepo = postgres.NewContactSubmissionRepository(dbPool)
		healthChecks["database"] = dbPool.Ping
	}

	// 5. Setup Email Transport
	var sender domain.EmailSender
	switch cfg.EmailProvider {
	case "ses":
		sesSender, err := email.NewSESSender(ctx, cfg)
		if err != nil {
			logger.Log.Error("Failed to configure SES", "error", err)
			os.Exit(1)
		}
		sender = sesSender
	case "smtp", "":
		sender = email.NewSMTPSender(cfg)
	default:
		logger.Log.Error("Unknown EMAIL_PROVIDER", "provider", cfg.EmailProvider)
		os.Exit(1)
	}

	// 6. Setup Attachment Archive (optional)
	var archive domain.AttachmentArchive
	if cfg.AttachmentBucket != "" {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Provider:        storage.S3Provider(cfg.StorageProvider),
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Region:          cfg.AWSRegion,
			Bucket:          cfg.AttachmentBucket,
			Endpoint:        cfg.StorageEndpoint,
		})
		if err != nil {
			logger.Log.Error("Failed to configure attachment storage", "error", err)
			os.Exit(1)
		}
		archive = storage.NewS3AttachmentArchive(s3Client, cfg.AttachmentBucket)
		healthChecks["storage"] = func(ctx context.Context) error {
			return storage.TestS3Connection(ctx, s3Client, cfg.AttachmentBucket)
		}
	}

	// 7. Setup Attachment Scanner
	var scanner antivirus.Scanner = antivirus.NewNoOpScanner()
	if cfg.ClamAVAddress != "" {
		clam := antivirus.NewClamAVScanner(cfg.ClamAVAddress, 30*time.Second)
		if !clam.Available(ctx) {
			logger.Log.Warn("ClamAV not reachable at startup, attachments will be refused until it is", "address", cfg.ClamAVAddress)
		}
		chain := antivirus.NewChainScanner(clam)
		scanner = chain
		healthChecks["clamav"] = func(ctx context.Context) error {
			if !chain.Available(ctx) {
				return antivirus.ErrNoScanner
			}
			return nil
		}
	}

	// 8. Setup UseCases
	submitter := usecase.NewContactUsSubmitter(cfg.ModelConfig(), sender)
	quota := security.NewRecipientQuota(redis.Client(), cfg.CCRecipientDailyLimit)
	contactUC := usecase.NewContactUsecase(submitter, submissionRepo, archive, quota, validation.New())

	// 9. Setup Router
	router := v1.NewRouter(v1.RouterDeps{
		ContactUC:      contactUC,
		Scanner:        scanner,
		SecurityLogger: secLogger,
		Verifier:       verifier(cfg),
		HealthUC:       usecase.NewHealthUsecase(healthChecks),
		Config:         cfg,
	})

	// 10. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", "error", err)
	}
	middleware.StopRateLimitCleanup()

	logger.Log.Info("Server exiting")
}

// verifier returns nil when no token settings are configured; every request is then a guest
func verifier(cfg *config.Config) middleware.TokenVerifier {
	if v := auth.NewIdentityVerifier(cfg.JWTSecret, cfg.JWKSURL); v != nil {
		return v
	}
	return nil
}

func environment() string {
	if os.Getenv("GIN_MODE") == "release" {
		return "production"
	}
	return "development"
}
