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

	"github.com/creditshare/creditshare/internal/alert"
	"github.com/creditshare/creditshare/internal/audit"
	"github.com/creditshare/creditshare/internal/auth"
	"github.com/creditshare/creditshare/internal/config"
	"github.com/creditshare/creditshare/internal/database"
	"github.com/creditshare/creditshare/internal/email"
	"github.com/creditshare/creditshare/internal/handler"
	"github.com/creditshare/creditshare/internal/logger"
	"github.com/creditshare/creditshare/internal/middleware"
	"github.com/creditshare/creditshare/internal/repository"
	"github.com/creditshare/creditshare/internal/router"
	"github.com/creditshare/creditshare/internal/security"
	"github.com/creditshare/creditshare/internal/service"
	"github.com/creditshare/creditshare/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", handler.Version).Msg("starting CreditShare server")

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Redis backs the request limiter and the alert channel; the server
	// runs without both when it is unreachable.
	var (
		counter   middleware.WindowCounter
		publisher alert.Publisher
	)
	deps := []handler.Dependency{{Name: "postgres", Checker: db, Required: true}}
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, request rate limiting and redis alerts disabled")
	} else {
		defer rdb.Close()
		counter, publisher = rdb, rdb
		deps = append(deps, handler.Dependency{Name: "redis", Checker: rdb})
		log.Info().Msg("connected to Redis")
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	trail := audit.NewTrail(auditRepo, log)

	tokenSvc, err := auth.NewTokenService(cfg.Security.Tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token service")
	}

	// Core admin session components
	throttle := security.NewLoginThrottle(cfg.Throttle)
	detector := security.NewSuspiciousLoginDetector(cfg.Detector.MaxDistinctAddresses)
	registry := session.NewRegistry(cfg.Admin.SessionTimeoutDuration(), cfg.Security.Tokens.AccessTokenTTL)

	dispatcher := alert.NewDispatcherFromConfig(cfg.Alerts, cfg.Email.AppName, publisher, log)
	log.Info().Strs("channels", dispatcher.Channels()).Msg("alert dispatcher initialized")

	var sender email.Sender
	if cfg.Email.Gmail.Configured() {
		gmail, err := email.NewSender(context.Background(), cfg.Email.Gmail)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize Gmail sender, admin login emails disabled")
		} else {
			sender = gmail
		}
	} else {
		log.Warn().Msg("Gmail not configured, admin login emails disabled")
	}
	notifier := alert.NewAdminLoginNotifier(sender, cfg.Admin.Email, cfg.Email.AppName, cfg.Alerts.Timeout, log)

	guard := session.NewGuard(tokenSvc, accountRepo, registry, dispatcher, cfg.Admin.Email, log)

	// Initialize services
	authSvc := service.NewAuthService(service.AuthDeps{
		Accounts: accountRepo,
		Tokens:   tokenSvc,
		Throttle: throttle,
		Detector: detector,
		Registry: registry,
		Guard:    guard,
		Alerts:   dispatcher,
		Notifier: notifier,
		Trail:    trail,
	}, log)
	adminSvc := service.NewAdminService(accountRepo, registry, dispatcher, trail)

	h := handler.New(log, cfg, authSvc, adminSvc, deps...)
	mw := middleware.New(counter, log, cfg)
	r := router.New(h, mw, authSvc, guard)

	sweeper := session.NewSweeper(registry, cfg.Admin.SweepInterval, log)
	sweeper.Start()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sweeper.Stop(ctx)

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Drain in-flight alert deliveries and notification emails
	if err := dispatcher.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("alert deliveries still pending at shutdown")
	}
	if err := notifier.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("admin login emails still pending at shutdown")
	}

	log.Info().Msg("server stopped")
}
