package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionStore(t *testing.T, idleTimeout time.Duration) *SessionStore {
	t.Helper()
	cfg := DefaultSessionConfig([]byte("0123456789abcdef0123456789abcdef"), false)
	cfg.IdleTimeout = idleTimeout
	store, err := NewSessionStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	return store
}

// requestWithCookies builds a fresh request carrying the session cookies
// written to w.
func requestWithCookies(w *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionStoreRejectsShortSecret(t *testing.T) {
	_, err := NewSessionStore(DefaultSessionConfig([]byte("short"), false), zerolog.Nop())
	assert.Error(t, err)
}

func TestSetGetUser(t *testing.T) {
	store := newTestSessionStore(t, 30*time.Minute)

	user := &SessionUser{
		ID:              uuid.New(),
		OIDCSubject:     "sub-123",
		Email:           "alice@example.com",
		Name:            "Alice",
		AuthenticatedAt: time.Now().Truncate(time.Second),
	}

	w := httptest.NewRecorder()
	require.NoError(t, store.SetUser(httptest.NewRequest("GET", "/", nil), w, user))

	got, err := store.GetUser(requestWithCookies(w))
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Email, got.Email)

	_, err = store.GetUser(httptest.NewRequest("GET", "/", nil))
	assert.Error(t, err)
}

func TestSessionIdleTimeout(t *testing.T) {
	store := newTestSessionStore(t, 30*time.Minute)

	current := time.Now()
	store.now = func() time.Time { return current }

	w := httptest.NewRecorder()
	user := &SessionUser{ID: uuid.New(), Email: "alice@example.com"}
	require.NoError(t, store.SetUser(httptest.NewRequest("GET", "/", nil), w, user))
	req := requestWithCookies(w)

	// Within the idle window the session is valid.
	current = current.Add(29 * time.Minute)
	_, err := store.GetUser(req)
	require.NoError(t, err)

	// Past the idle window it is not, even though MaxAge has not elapsed.
	current = current.Add(2 * time.Minute)
	_, err = store.GetUser(req)
	assert.Error(t, err)
}

func TestTouchSessionExtendsIdleWindow(t *testing.T) {
	store := newTestSessionStore(t, 30*time.Minute)

	current := time.Now()
	store.now = func() time.Time { return current }

	w := httptest.NewRecorder()
	user := &SessionUser{ID: uuid.New(), Email: "alice@example.com"}
	require.NoError(t, store.SetUser(httptest.NewRequest("GET", "/", nil), w, user))
	req := requestWithCookies(w)

	// Activity 20 minutes in refreshes the window.
	current = current.Add(20 * time.Minute)
	touched := httptest.NewRecorder()
	require.NoError(t, store.TouchSession(req, touched))
	refreshed := requestWithCookies(touched)

	// 45 minutes after login: the touched session lives, the stale one not.
	current = current.Add(25 * time.Minute)
	_, err := store.GetUser(refreshed)
	assert.NoError(t, err)
	_, err = store.GetUser(req)
	assert.Error(t, err)
}

func TestTouchSessionWithoutUserIsNoOp(t *testing.T) {
	store := newTestSessionStore(t, 30*time.Minute)

	w := httptest.NewRecorder()
	require.NoError(t, store.TouchSession(httptest.NewRequest("GET", "/", nil), w))
	assert.Empty(t, w.Result().Cookies())
}

func TestSessionIdleTimeoutDisabled(t *testing.T) {
	store := newTestSessionStore(t, 0)

	current := time.Now()
	store.now = func() time.Time { return current }

	w := httptest.NewRecorder()
	user := &SessionUser{ID: uuid.New(), Email: "alice@example.com"}
	require.NoError(t, store.SetUser(httptest.NewRequest("GET", "/", nil), w, user))
	req := requestWithCookies(w)

	current = current.Add(12 * time.Hour)
	_, err := store.GetUser(req)
	assert.NoError(t, err)
}
