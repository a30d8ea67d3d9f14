package gatehouse

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Token.SigningKey = []byte("test-signing-key")
	cfg.Token.SetupKey = []byte("0123456789abcdef")
	cfg.Cookie.Secure = false
	return cfg
}

type testEnv struct {
	engine *Engine
	store  *memStore
	mail   *mailRecorder
	redis  *miniredis.Miniredis
}

func newTestEngine(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	store := newMemStore()
	mail := &mailRecorder{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithNotifier(mail).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, mail: mail, redis: mr}
}

func registerUser(t *testing.T, env *testEnv, email, pass string) *LoginResult {
	t.Helper()

	res, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: pass,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return res
}

func loginUser(t *testing.T, env *testEnv, email, pass string) *LoginResult {
	t.Helper()

	res, err := env.engine.Login(context.Background(), LoginRequest{
		Email:    email,
		Password: pass,
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return res
}

func authPrincipal(t *testing.T, env *testEnv, access string) *Principal {
	t.Helper()

	p, err := env.engine.Authenticate(context.Background(), access)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	return p
}

// markVerified flips the verified bit directly in the store, standing in for
// the mail round trip where a test does not exercise it.
func markVerified(t *testing.T, env *testEnv, userID string) {
	t.Helper()

	user, err := env.store.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	user.EmailVerified = true
	if err := env.store.Save(context.Background(), user); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}

// ---------------------------------------------------------------------------
// In-memory UserStore
// ---------------------------------------------------------------------------

type memStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
	saves   int
}

func newMemStore() *memStore {
	return &memStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (s *memStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneTestUser(u), nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneTestUser(s.byID[id]), nil
}

func (s *memStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *memStore) Save(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	s.byID[user.ID] = cloneTestUser(user)
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *memStore) SwapSessionToken(_ context.Context, userID, sessionID, expect string, next Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	current, ok := u.Sessions[sessionID]
	if !ok || current.RefreshTokenID != expect {
		return false, nil
	}
	u.Sessions[sessionID] = next
	return true, nil
}

// failingStore wraps a UserStore and fails lookups with a fixed error,
// standing in for a backend outage.
type failingStore struct {
	UserStore
	findErr error
}

func (s *failingStore) FindByID(ctx context.Context, id string) (*User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.UserStore.FindByID(ctx, id)
}

func cloneTestUser(u *User) *User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	c.Groups = append([]string(nil), u.Groups...)
	c.Identities = append([]Identity(nil), u.Identities...)
	c.TwoFactor.TOTP.RecoveryCodeHashes = append([][]byte(nil), u.TwoFactor.TOTP.RecoveryCodeHashes...)
	c.Sessions = make(map[string]Session, len(u.Sessions))
	for k, v := range u.Sessions {
		c.Sessions[k] = v
	}
	return &c
}

// ---------------------------------------------------------------------------
// Recording Notifier
// ---------------------------------------------------------------------------

type sentMail struct {
	Address string
	Subject string
	Body    string
	Locale  string
}

type mailRecorder struct {
	mu   sync.Mutex
	sent []sentMail
}

func (r *mailRecorder) Send(_ context.Context, address, subject, body, locale string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{Address: address, Subject: subject, Body: body, Locale: locale})
	return nil
}

func (r *mailRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *mailRecorder) last(t *testing.T) sentMail {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("no mail was sent")
	}
	return r.sent[len(r.sent)-1]
}
