package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	gatehouse "github.com/gatehouse-auth/gatehouse"
)

type stubStore struct {
	mu      sync.RWMutex
	byID    map[string]*gatehouse.User
	byEmail map[string]string
}

func newStubStore() *stubStore {
	return &stubStore{byID: map[string]*gatehouse.User{}, byEmail: map[string]string{}}
}

func (s *stubStore) FindByID(_ context.Context, id string) (*gatehouse.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, gatehouse.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *stubStore) FindByEmail(_ context.Context, email string) (*gatehouse.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, gatehouse.ErrUserNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *stubStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *stubStore) Save(_ context.Context, user *gatehouse.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	s.byID[user.ID] = &clone
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *stubStore) SwapSessionToken(_ context.Context, userID, sessionID, expect string, next gatehouse.Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return false, gatehouse.ErrUserNotFound
	}
	current, ok := u.Sessions[sessionID]
	if !ok || current.RefreshTokenID != expect {
		return false, nil
	}
	u.Sessions[sessionID] = next
	return true, nil
}

func newTestAdapter(t *testing.T, mutate func(*gatehouse.Config)) (*Adapter, *gatehouse.Engine, *gatehouse.TokenPair) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := gatehouse.Config{}
	cfg.Token.SigningKey = []byte("transport-test-key")
	cfg.Cookie.Secure = false
	cfg.Cookie.AllowHeader = true
	cfg.Cookie.SameSite = http.SameSiteStrictMode
	cfg.Verification.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := gatehouse.New().
		WithConfig(cfg).
		WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})).
		WithUserStore(newStubStore()).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	res, err := engine.Register(context.Background(), gatehouse.RegisterRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	return New(engine), engine, res.Tokens
}

func TestSetTokenPairCookies(t *testing.T) {
	adapter, _, pair := newTestAdapter(t, nil)

	rec := httptest.NewRecorder()
	adapter.SetTokenPair(rec, pair)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	access := byName[CookieAccess]
	require.NotNil(t, access)
	require.Equal(t, pair.AccessToken, access.Value)
	require.True(t, access.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, access.SameSite)
	require.Greater(t, access.MaxAge, 0)

	refresh := byName[CookieRefresh]
	require.NotNil(t, refresh)
	require.Equal(t, pair.RefreshToken, refresh.Value)
}

func TestClearCookiesExpire(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, nil)

	rec := httptest.NewRecorder()
	adapter.ClearTokenPair(rec)
	adapter.ClearTwoFactorCookie(rec)

	for _, c := range rec.Result().Cookies() {
		require.Empty(t, c.Value, "cookie %s should be cleared", c.Name)
		require.Negative(t, c.MaxAge)
	}
}

func TestAccessTokenPreferenceOrder(t *testing.T) {
	adapter, _, pair := newTestAdapter(t, func(cfg *gatehouse.Config) {
		cfg.Cookie.HeaderFirst = true
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	r.AddCookie(&http.Cookie{Name: CookieAccess, Value: pair.AccessToken})

	raw, err := adapter.AccessToken(r)
	require.NoError(t, err)
	require.Equal(t, "header-token", raw)
}

func TestAccessTokenCookieFirst(t *testing.T) {
	adapter, _, pair := newTestAdapter(t, nil) // HeaderFirst defaults to false

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	r.AddCookie(&http.Cookie{Name: CookieAccess, Value: pair.AccessToken})

	raw, err := adapter.AccessToken(r)
	require.NoError(t, err)
	require.Equal(t, pair.AccessToken, raw)
}

func TestAccessTokenHeaderDisabled(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, func(cfg *gatehouse.Config) {
		cfg.Cookie.AllowHeader = false
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer header-token")

	_, err := adapter.AccessToken(r)
	require.ErrorIs(t, err, gatehouse.ErrInvalidToken)
}

func TestAuthenticateResolvesPrincipal(t *testing.T) {
	adapter, _, pair := newTestAdapter(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieAccess, Value: pair.AccessToken})

	p, err := adapter.Authenticate(r)
	require.NoError(t, err)
	require.Equal(t, pair.SessionID, p.SessionID)
}

func TestAuthenticateOrNilMissingToken(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	p, err := adapter.AuthenticateOrNil(r)
	require.NoError(t, err)
	require.Nil(t, p)

	// A present but forged token is still an error.
	r.AddCookie(&http.Cookie{Name: CookieAccess, Value: "forged"})
	_, err = adapter.AuthenticateOrNil(r)
	require.Error(t, err)
}

func TestGuardInjectsPrincipal(t *testing.T) {
	adapter, _, pair := newTestAdapter(t, nil)

	handler := Guard(adapter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		require.NotEmpty(t, p.UserID)
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// No token: rejected before the handler runs.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleForbidsMissingRole(t *testing.T) {
	adapter, _, pair := newTestAdapter(t, nil)

	handler := RequireRole(adapter, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusForbidden, rec.Code)

	allowed := RequireRole(adapter, "user")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec = httptest.NewRecorder()
	allowed.ServeHTTP(rec, r)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSessionTokenMissingIsEmpty(t *testing.T) {
	adapter, engine, pair := newTestAdapter(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, adapter.SessionToken(r))

	token, err := engine.IssueSessionToken(pair.SessionID, gatehouse.ClientInfo{Browser: "Firefox"})
	require.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: CookieSession, Value: token})
	require.Equal(t, token, adapter.SessionToken(r))
}
