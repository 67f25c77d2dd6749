// ScheduleHQ server: multi-tenant availability scheduling for agencies and
// freelancers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/schedulehq/schedulehq/internal/api"
	"github.com/schedulehq/schedulehq/internal/auth"
	"github.com/schedulehq/schedulehq/internal/config"
	"github.com/schedulehq/schedulehq/internal/db"
	"github.com/schedulehq/schedulehq/internal/invites"
	"github.com/schedulehq/schedulehq/internal/maintenance"
	"github.com/schedulehq/schedulehq/internal/notifications"
)

// Build information, set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	logger := setupLogger()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	oidc, err := auth.NewOIDC(ctx, auth.DefaultOIDCConfig(
		cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL,
	), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize OIDC")
	}

	sessionCfg := auth.DefaultSessionConfig([]byte(cfg.SessionSecret), cfg.Environment == config.EnvProduction)
	sessionCfg.MaxAge = cfg.SessionMaxAge
	sessionCfg.IdleTimeout = time.Duration(cfg.SessionIdleTimeout) * time.Second
	sessions, err := auth.NewSessionStore(sessionCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize session store")
	}

	var mailer invites.Mailer
	if cfg.SMTP.Enabled() {
		sender, err := notifications.NewEmailSender(cfg.SMTP, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize email sender")
		}
		mailer = sender
	} else {
		logger.Warn().Msg("SMTP not configured, invitation emails disabled")
	}

	inviteService := invites.NewService(database, mailer, cfg.BaseURL, logger)

	sweeper := maintenance.NewSweeper(database, cfg.SweepSchedule, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start invitation sweeper")
	}
	defer sweeper.Stop()

	apiCfg := api.Config{
		AllowedOrigins: splitOrigins(os.Getenv("CORS_ORIGINS")),
		Environment:    cfg.Environment,
		RateLimit:      cfg.RateLimit,
		RedisURL:       cfg.RedisURL,
		Version:        version,
		Commit:         commit,
		BuildDate:      buildDate,
	}

	router, err := api.NewRouter(apiCfg, database, oidc, sessions, inviteService, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create router")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("version", version).
			Str("env", string(cfg.Environment)).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func setupLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	var logger zerolog.Logger
	if os.Getenv("LOG_FORMAT") == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
