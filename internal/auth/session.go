package auth

import (
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

func init() {
	// Register types for session serialization
	gob.Register(uuid.UUID{})
	gob.Register(time.Time{})
}

const (
	// SessionName is the name of the session cookie.
	SessionName = "schedulehq_session"
	// StateKey is the session key for OIDC state.
	StateKey = "oidc_state"
	// UserIDKey is the session key for the authenticated user ID.
	UserIDKey = "user_id"
	// OIDCSubjectKey is the session key for the OIDC subject.
	OIDCSubjectKey = "oidc_subject"
	// EmailKey is the session key for the user's email.
	EmailKey = "email"
	// NameKey is the session key for the user's name.
	NameKey = "name"
	// AuthenticatedAtKey is the session key for when the user authenticated.
	AuthenticatedAtKey = "authenticated_at"
	// LastActivityKey is the session key for the last request timestamp,
	// used for idle timeout enforcement.
	LastActivityKey = "last_activity"
)

// SessionConfig holds session store configuration.
type SessionConfig struct {
	Secret      []byte
	MaxAge      int           // seconds
	IdleTimeout time.Duration // 0 disables idle expiry
	Secure      bool          // require HTTPS
	HTTPOnly    bool          // prevent JavaScript access
	SameSite    http.SameSite
	CookiePath  string
}

// DefaultSessionConfig returns a SessionConfig with secure defaults.
func DefaultSessionConfig(secret []byte, secure bool) SessionConfig {
	return SessionConfig{
		Secret:      secret,
		MaxAge:      86400, // 24 hours
		IdleTimeout: 30 * time.Minute,
		Secure:      secure,
		HTTPOnly:    true,
		SameSite:    http.SameSiteLaxMode,
		CookiePath:  "/",
	}
}

// SessionStore wraps a gorilla/sessions store with helper methods.
type SessionStore struct {
	store       *sessions.CookieStore
	idleTimeout time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSessionStore creates a new session store.
func NewSessionStore(cfg SessionConfig, logger zerolog.Logger) (*SessionStore, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}

	store := sessions.NewCookieStore(cfg.Secret)
	store.Options = &sessions.Options{
		Path:     cfg.CookiePath,
		MaxAge:   cfg.MaxAge,
		HttpOnly: cfg.HTTPOnly,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}

	s := &SessionStore{
		store:       store,
		idleTimeout: cfg.IdleTimeout,
		logger:      logger.With().Str("component", "session").Logger(),
		now:         time.Now,
	}

	s.logger.Info().
		Bool("secure", cfg.Secure).
		Int("max_age", cfg.MaxAge).
		Dur("idle_timeout", cfg.IdleTimeout).
		Msg("session store initialized")

	return s, nil
}

// Get retrieves a session from the request.
func (s *SessionStore) Get(r *http.Request) (*sessions.Session, error) {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Save saves the session to the response.
func (s *SessionStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SetOIDCState stores the OIDC state in the session.
func (s *SessionStore) SetOIDCState(r *http.Request, w http.ResponseWriter, state string) error {
	session, err := s.Get(r)
	if err != nil {
		return err
	}
	session.Values[StateKey] = state
	return s.Save(r, w, session)
}

// GetOIDCState retrieves and clears the OIDC state from the session.
func (s *SessionStore) GetOIDCState(r *http.Request, w http.ResponseWriter) (string, error) {
	session, err := s.Get(r)
	if err != nil {
		return "", err
	}
	state, ok := session.Values[StateKey].(string)
	if !ok {
		return "", fmt.Errorf("no state in session")
	}
	// Clear the state after retrieval
	delete(session.Values, StateKey)
	if err := s.Save(r, w, session); err != nil {
		return "", err
	}
	return state, nil
}

// SessionUser represents the authenticated user data stored in session.
// It is the single explicit session object handed to handlers; role and
// guard decisions are re-derived from it on every request.
type SessionUser struct {
	ID              uuid.UUID
	OIDCSubject     string
	Email           string
	Name            string
	AuthenticatedAt time.Time
}

// SetUser stores user data in the session after successful authentication.
func (s *SessionStore) SetUser(r *http.Request, w http.ResponseWriter, user *SessionUser) error {
	session, err := s.Get(r)
	if err != nil {
		return err
	}
	session.Values[UserIDKey] = user.ID
	session.Values[OIDCSubjectKey] = user.OIDCSubject
	session.Values[EmailKey] = user.Email
	session.Values[NameKey] = user.Name
	session.Values[AuthenticatedAtKey] = user.AuthenticatedAt
	session.Values[LastActivityKey] = s.now()
	return s.Save(r, w, session)
}

// TouchSession refreshes the session's last-activity timestamp so an active
// user is never idle-expired. Requests without an authenticated user are a
// no-op.
func (s *SessionStore) TouchSession(r *http.Request, w http.ResponseWriter) error {
	session, err := s.Get(r)
	if err != nil {
		return err
	}
	if _, ok := session.Values[UserIDKey].(uuid.UUID); !ok {
		return nil
	}
	session.Values[LastActivityKey] = s.now()
	return s.Save(r, w, session)
}

// GetUser retrieves the authenticated user from the session. It returns an
// error if no user is authenticated or the session has been idle longer than
// the configured timeout.
func (s *SessionStore) GetUser(r *http.Request) (*SessionUser, error) {
	session, err := s.Get(r)
	if err != nil {
		return nil, err
	}

	id, ok := session.Values[UserIDKey].(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("no authenticated user in session")
	}

	if s.idleTimeout > 0 {
		last, ok := session.Values[LastActivityKey].(time.Time)
		if !ok || s.now().Sub(last) > s.idleTimeout {
			return nil, fmt.Errorf("session idle timeout exceeded")
		}
	}

	user := &SessionUser{ID: id}
	if v, ok := session.Values[OIDCSubjectKey].(string); ok {
		user.OIDCSubject = v
	}
	if v, ok := session.Values[EmailKey].(string); ok {
		user.Email = v
	}
	if v, ok := session.Values[NameKey].(string); ok {
		user.Name = v
	}
	if v, ok := session.Values[AuthenticatedAtKey].(time.Time); ok {
		user.AuthenticatedAt = v
	}

	return user, nil
}

// ClearUser removes all authentication data from the session.
func (s *SessionStore) ClearUser(r *http.Request, w http.ResponseWriter) error {
	session, err := s.Get(r)
	if err != nil {
		return err
	}
	session.Options.MaxAge = -1
	session.Values = make(map[any]any)
	return s.Save(r, w, session)
}
