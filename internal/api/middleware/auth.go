// Package middleware provides HTTP middleware for the ScheduleHQ API.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schedulehq/schedulehq/internal/auth"
	"github.com/schedulehq/schedulehq/internal/models"
)

// UserStore is the interface for verifying users exist in the database.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ContextKey is the type for context keys used by this package.
type ContextKey string

// UserContextKey is the context key for the authenticated user.
const UserContextKey ContextKey = "user"

// AuthMiddleware returns a Gin middleware that requires authentication.
func AuthMiddleware(sessions *auth.SessionStore, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		sessionUser, err := sessions.GetUser(c.Request)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("unauthenticated request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		// Refresh last activity timestamp for idle timeout tracking
		if err := sessions.TouchSession(c.Request, c.Writer); err != nil {
			log.Warn().Err(err).Msg("failed to refresh session activity")
		}

		c.Set(string(UserContextKey), sessionUser)
		c.Next()
	}
}

// UserVerifyMiddleware returns a Gin middleware that verifies the session user
// exists in the database. This catches stale sessions after a database reset.
// Must run after AuthMiddleware.
func UserVerifyMiddleware(store UserStore, sessions *auth.SessionStore, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "user_verify_middleware").Logger()

	return func(c *gin.Context) {
		user := GetUser(c)
		if user == nil {
			c.Next()
			return
		}

		if _, err := store.GetUserByID(c.Request.Context(), user.ID); err != nil {
			log.Warn().
				Str("user_id", user.ID.String()).
				Msg("session user not found in database, clearing stale session")
			if clearErr := sessions.ClearUser(c.Request, c.Writer); clearErr != nil {
				log.Warn().Err(clearErr).Msg("failed to clear stale session")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired, please log in again"})
			return
		}

		c.Next()
	}
}

// GetUser retrieves the authenticated user from the Gin context.
// Returns nil if no user is authenticated.
func GetUser(c *gin.Context) *auth.SessionUser {
	user, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil
	}
	sessionUser, ok := user.(*auth.SessionUser)
	if !ok {
		return nil
	}
	return sessionUser
}

// RequireUser is a helper that gets the authenticated user or aborts with 401.
// Use this in handlers that expect AuthMiddleware to have already run.
func RequireUser(c *gin.Context) *auth.SessionUser {
	user := GetUser(c)
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil
	}
	return user
}
