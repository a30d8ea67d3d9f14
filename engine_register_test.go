package gatehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatehouse-auth/gatehouse/password"
)

func TestRegisterAutoLoginAndVerification(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	res := registerUser(t, env, "alice@example.com", "correct-horse")
	if res.Tokens == nil {
		t.Fatal("expected auto-login token pair")
	}
	authPrincipal(t, env, res.Tokens.AccessToken)

	mail := env.mail.last(t)
	if mail.Address != "alice@example.com" {
		t.Fatalf("expected verification mail to alice, got %s", mail.Address)
	}

	if err := env.engine.ConfirmEmailVerification(ctx, mail.Body); err != nil {
		t.Fatalf("ConfirmEmailVerification failed: %v", err)
	}
	user, err := env.store.FindByID(ctx, res.UserID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !user.EmailVerified {
		t.Fatal("expected address verified")
	}

	if err := env.engine.ConfirmEmailVerification(ctx, mail.Body); !errors.Is(err, ErrEmailAlreadyVerified) {
		t.Fatalf("expected ErrEmailAlreadyVerified on replay, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEngine(t, testConfig())

	registerUser(t, env, "alice@example.com", "correct-horse")

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:    "ALICE@example.com",
		Password: "another-pass",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	env := newTestEngine(t, testConfig())

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "short",
	})
	if !errors.Is(err, password.ErrPasswordLength) {
		t.Fatalf("expected ErrPasswordLength, got %v", err)
	}
}

func TestVerificationMailCooldown(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	res := registerUser(t, env, "alice@example.com", "correct-horse")
	sent := env.mail.count()

	err := env.engine.RequestEmailVerification(ctx, res.UserID, "")
	var cd *CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("expected CooldownError, got %v", err)
	}
	if cd.Remaining <= 0 || cd.RemainingSeconds() <= 0 {
		t.Fatal("expected positive remaining cooldown")
	}
	if env.mail.count() != sent {
		t.Fatal("expected no mail during cooldown")
	}

	env.redis.FastForward(testConfig().Cooldown.VerificationEmail + time.Second)

	if err := env.engine.RequestEmailVerification(ctx, res.UserID, ""); err != nil {
		t.Fatalf("RequestEmailVerification after cooldown failed: %v", err)
	}
	if env.mail.count() != sent+1 {
		t.Fatal("expected one mail after cooldown lapsed")
	}
}

func TestVerificationTokenForPreviousAddressRejected(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	res := registerUser(t, env, "alice@example.com", "correct-horse")
	tokenMail := env.mail.last(t)

	// The address changes before the token is used.
	user, err := env.store.FindByID(ctx, res.UserID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	user.Email = "new@example.com"
	if err := env.store.Save(ctx, user); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := env.engine.ConfirmEmailVerification(ctx, tokenMail.Body); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for stale address, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	res := registerUser(t, env, "alice@example.com", "correct-horse")

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := env.mail.last(t).Body

	if err := env.engine.ConfirmPasswordReset(ctx, resetToken, "fresh-stallion"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}

	// Old credential is gone, old sessions are dead.
	_, err := env.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct-horse"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, res.Tokens.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected pre-reset token revoked, got %v", err)
	}

	loginUser(t, env, "alice@example.com", "fresh-stallion")
}

func TestConfirmResetStoreOutagePropagates(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	registerUser(t, env, "alice@example.com", "correct-horse")
	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := env.mail.last(t).Body

	outage := errors.New("user store down")
	env.engine.users = &failingStore{UserStore: env.store, findErr: outage}

	err := env.engine.ConfirmPasswordReset(ctx, resetToken, "fresh-stallion")
	if !errors.Is(err, outage) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Fatal("a store outage must not read as a forged token")
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	sent := env.mail.count()
	if err := env.engine.RequestPasswordReset(ctx, "nobody@example.com", ""); err != nil {
		t.Fatalf("expected silent success for unknown address, got %v", err)
	}
	if env.mail.count() != sent {
		t.Fatal("expected no mail for unknown address")
	}

	// The cooldown is registered all the same, so probing behaves
	// identically for known and unknown addresses.
	err := env.engine.RequestPasswordReset(ctx, "nobody@example.com", "")
	var cd *CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("expected CooldownError, got %v", err)
	}

	remaining, err := env.engine.PasswordResetCooldown(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("PasswordResetCooldown failed: %v", err)
	}
	if remaining <= 0 {
		t.Fatal("expected positive remaining cooldown")
	}
}

func TestPasswordResetExpiredToken(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	registerUser(t, env, "alice@example.com", "correct-horse")
	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := env.mail.last(t).Body

	env.engine.codec.SetNowFunc(func() time.Time {
		return time.Now().Add(testConfig().PasswordReset.TokenTTL + 2*time.Minute)
	})

	err := env.engine.ConfirmPasswordReset(ctx, resetToken, "fresh-stallion")
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	registerUser(t, env, "alice@example.com", "correct-horse")
	own := loginUser(t, env, "alice@example.com", "correct-horse")
	other := loginUser(t, env, "alice@example.com", "correct-horse")

	p := authPrincipal(t, env, own.Tokens.AccessToken)

	if err := env.engine.ChangePassword(ctx, p, "wrong-horse", "fresh-stallion"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, p, "correct-horse", "fresh-stallion"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	// The caller's session survives; every other session dies.
	if _, err := env.engine.Authenticate(ctx, own.Tokens.AccessToken); err != nil {
		t.Fatalf("expected own session to survive, got %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, other.Tokens.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected other session revoked, got %v", err)
	}

	loginUser(t, env, "alice@example.com", "fresh-stallion")
}
