package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/api"
	"github.com/agrigpt/backend/internal/app"
	"github.com/agrigpt/backend/internal/app/maintenance"
	"github.com/agrigpt/backend/internal/auth"
	"github.com/agrigpt/backend/internal/auth/federated"
	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/internal/responder"
	"github.com/agrigpt/backend/internal/services"
	"github.com/agrigpt/backend/pkg/logger"
	"github.com/agrigpt/backend/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("agrigpt-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; one-time codes will not be delivered by email")
	}

	jwtService, err := auth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	otpService, err := auth.NewOTPService(db, cfg.Auth.OTPServiceConfig(), auth.WithOTPMailer(mailer))
	if err != nil {
		return fmt.Errorf("initialise otp service: %w", err)
	}

	verifier := federated.NewGoogleVerifier(federated.Options{
		Issuer:       cfg.Auth.Federated.Issuer,
		ClientID:     cfg.Auth.Federated.ClientID,
		ClientSecret: cfg.Auth.Federated.ClientSecret,
		RedirectURL:  cfg.Auth.Federated.RedirectURL,
	})

	flowService, err := auth.NewFlowService(db, otpService, jwtService, auth.WithFederatedVerifier(verifier))
	if err != nil {
		return fmt.Errorf("initialise flow service: %w", err)
	}

	accountService, err := services.NewAccountService(db)
	if err != nil {
		return fmt.Errorf("initialise account service: %w", err)
	}

	chatService, err := services.NewChatService(db, responder.NewStatic(),
		services.WithTranscriber(responder.NewUnconfiguredTranscriber()))
	if err != nil {
		return fmt.Errorf("initialise chat service: %w", err)
	}

	reportService, err := services.NewReportService(db, responder.NewReportTemplate())
	if err != nil {
		return fmt.Errorf("initialise report service: %w", err)
	}

	feedbackService, err := services.NewFeedbackService(db)
	if err != nil {
		return fmt.Errorf("initialise feedback service: %w", err)
	}

	developerService, err := services.NewDeveloperService(db)
	if err != nil {
		return fmt.Errorf("initialise developer service: %w", err)
	}

	cleaner := maintenance.NewCleaner(db, otpService)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(api.Deps{
		DB:             db,
		JWT:            jwtService,
		Flow:           flowService,
		Accounts:       accountService,
		Chat:           chatService,
		Reports:        reportService,
		Feedback:       feedbackService,
		Devs:           developerService,
		MetricsEnabled: cfg.Monitoring.Prometheus.Enabled,
		AuthRateLimit:  cfg.Server.AuthRateLimit,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("acquire database handle", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
}
