// Package api provides the HTTP API for the ScheduleHQ server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/schedulehq/schedulehq/internal/api/handlers"
	"github.com/schedulehq/schedulehq/internal/api/middleware"
	"github.com/schedulehq/schedulehq/internal/auth"
	"github.com/schedulehq/schedulehq/internal/config"
	"github.com/schedulehq/schedulehq/internal/db"
	"github.com/schedulehq/schedulehq/internal/invites"
)

// Config holds configuration for the API router.
type Config struct {
	// AllowedOrigins for CORS. Empty means all origins allowed in dev mode.
	AllowedOrigins []string
	// Environment gates CORS strictness.
	Environment config.Environment
	// RateLimit in limiter format, e.g. "100-M".
	RateLimit string
	// RedisURL enables the shared Redis rate limit store when set.
	RedisURL string
	// Version information for the version endpoint.
	Version   string
	Commit    string
	BuildDate string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{},
		Environment:    config.EnvDevelopment,
		RateLimit:      "100-M",
		Version:        "dev",
		Commit:         "unknown",
		BuildDate:      "unknown",
	}
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine   *gin.Engine
	logger   zerolog.Logger
	sessions *auth.SessionStore
	db       *db.DB
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(
	cfg Config,
	database *db.DB,
	oidc *auth.OIDC,
	sessions *auth.SessionStore,
	inviteService *invites.Service,
	logger zerolog.Logger,
) (*Router, error) {
	r := &Router{
		Engine:   gin.New(),
		logger:   logger.With().Str("component", "router").Logger(),
		sessions: sessions,
		db:       database,
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.SecurityHeaders())
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Environment))

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	roles := auth.NewRoleResolver(database)
	guard := auth.NewAccessGuard(database, logger)

	// Public endpoints
	healthHandler := handlers.NewHealthHandler(database, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	versionHandler := handlers.NewVersionHandler(cfg.Version, cfg.Commit, cfg.BuildDate)
	versionHandler.RegisterPublicRoutes(r.Engine)

	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	invitationHandler := handlers.NewInvitationHandler(inviteService, database, logger)
	invitationHandler.RegisterPublicRoutes(r.Engine)

	// Auth routes (no session required)
	authGroup := r.Engine.Group("/auth")
	authHandler := handlers.NewAuthHandler(oidc, sessions, database, roles, logger)
	authHandler.RegisterRoutes(authGroup)

	// API v1 routes (session required)
	apiV1 := r.Engine.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(sessions, logger))
	apiV1.Use(middleware.UserVerifyMiddleware(database, sessions, logger))

	orgHandler := handlers.NewOrganizationHandler(database, roles, logger)
	orgHandler.RegisterRoutes(apiV1)

	invitationHandler.RegisterRoutes(apiV1)

	availabilityHandler := handlers.NewAvailabilityHandler(database, guard, logger)
	availabilityHandler.RegisterRoutes(apiV1)

	return r, nil
}
