package gatehouse

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two cases are never distinguished in the returned error.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers malformed, wrong-purpose, wrong-signature and
	// revoked tokens. Internal causes are distinguished only in audit events.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token is structurally valid but past
	// its expiry (beyond the configured clock-skew leeway).
	ErrTokenExpired = errors.New("token expired")
	// ErrNotAuthorized is returned by role and group checks.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrInvalidPrincipal signals a missing or malformed security context.
	// This is an internal-error category, never folded into ErrInvalidToken.
	ErrInvalidPrincipal = errors.New("invalid principal")
	// ErrTwoFactorRequired signals a pending second factor. Login reports
	// this state through LoginResult.TwoFactorRequired; the sentinel exists
	// for hosts that surface it as an error at their transport layer.
	ErrTwoFactorRequired = errors.New("two-factor authentication required")
	// ErrTwoFactorDisabled is returned when a two-factor operation targets a
	// user or method with two-factor authentication turned off.
	ErrTwoFactorDisabled = errors.New("two-factor authentication disabled")
	// ErrTwoFactorCodeInvalid is returned for a wrong or expired 2FA code.
	ErrTwoFactorCodeInvalid = errors.New("invalid two-factor code")
	// ErrEmailAlreadyVerified is an expected idempotent-retry state, not a
	// fault.
	ErrEmailAlreadyVerified = errors.New("email already verified")
	// ErrEmailTaken is returned by Register when the address is in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrGuestAccount is returned when a guest account attempts an operation
	// requiring an email address (verification, password reset).
	ErrGuestAccount = errors.New("guest accounts cannot perform this action")
	// ErrUserNotFound is returned by the user store for unknown ids. Login
	// paths translate it to ErrInvalidCredentials before returning.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is returned when a token references a session that
	// no longer exists on the user.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCannotConnectProvider is returned when connecting an identity
	// provider that is already bound to the account.
	ErrCannotConnectProvider = errors.New("cannot connect identity provider")
	// ErrCannotDisconnectProvider is returned when disconnecting would leave
	// the account without any identity.
	ErrCannotDisconnectProvider = errors.New("cannot disconnect identity provider")
	// ErrCacheUnavailable wraps revocation/cooldown backend failures.
	ErrCacheUnavailable = errors.New("cache backend unavailable")
	// ErrEngineNotReady is returned when the engine is used before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// CooldownError reports that a notification for the key was already sent
// within the cooldown window. It is an expected state for idempotent retries
// and unwraps to nothing; callers branch on it with errors.As.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, retry in %s", e.Remaining.Round(time.Second))
}

// RemainingSeconds rounds the remaining window up to whole seconds, the shape
// surfaced to clients.
func (e *CooldownError) RemainingSeconds() int {
	secs := int((e.Remaining + time.Second - 1) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}
