package gatehouse

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/gatehouse-auth/gatehouse/internal"
)

// TwoFactorConfirmRequest is the input for [Engine.ConfirmTwoFactor].
type TwoFactorConfirmRequest struct {
	// Token is the two-factor token issued by Login.
	Token  string
	Method TwoFactorMethod
	Code   string
	Locale string
	Client ClientInfo
	// SessionToken optionally carries client session metadata, as in Login.
	SessionToken string
}

// ConfirmTwoFactor completes a pending two-factor login. A wrong code or
// expired token leaves the attempt pending with no trust escalation; a valid
// code authenticates and mints a fresh token pair. The two-factor token is
// consumed by success (the transport layer clears its cookie) and recovery
// codes additionally yield a step-up token, since recovery is the one flow
// granted step-up trust without a prior access token.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, req TwoFactorConfirmRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.codec.ParseTwoFactor(req.Token)
	if err != nil {
		return nil, mapTokenError(err)
	}
	user, err := e.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.TwoFactor.Enabled {
		return nil, ErrTwoFactorDisabled
	}

	var recovery bool
	switch req.Method {
	case MethodTOTP:
		err = e.checkTOTPCode(ctx, user, req.Code)
	case MethodEmail:
		err = e.checkEmailCode(ctx, user, req.Code)
	case MethodRecoveryCode:
		err = e.consumeRecoveryCode(ctx, user, req.Code)
		recovery = err == nil
	default:
		err = ErrTwoFactorCodeInvalid
	}
	if err != nil {
		e.metricInc(MetricTwoFactorFailure)
		e.emitUserAudit(ctx, auditTwoFactorFailure, false, user, "", req.Client.IPAddress, err,
			map[string]string{"method": string(req.Method)})
		return nil, err
	}

	sessionID, client := e.resolveSessionMeta(req.SessionToken, req.Client)
	pair, err := e.mintTokenPair(ctx, user, sessionID, client)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{UserID: user.ID, Tokens: pair}
	if recovery {
		stepUp, err := e.stepUpForRecovery(user.ID, sessionID)
		if err != nil {
			return nil, err
		}
		result.StepUpToken = stepUp
		e.metricInc(MetricRecoveryCodeUsed)
		e.emitUserAudit(ctx, auditRecoveryUsed, true, user, sessionID, client.IPAddress, nil, nil)
	}
	e.metricInc(MetricTwoFactorSuccess)
	e.emitUserAudit(ctx, auditTwoFactorSuccess, true, user, sessionID, client.IPAddress, nil,
		map[string]string{"method": string(req.Method)})
	return result, nil
}

// LoginWithRecoveryCode is the recovery entry point: it consumes exactly one
// recovery code and returns a token pair plus a step-up token.
func (e *Engine) LoginWithRecoveryCode(ctx context.Context, twoFactorToken, code string, client ClientInfo) (*LoginResult, error) {
	return e.ConfirmTwoFactor(ctx, TwoFactorConfirmRequest{
		Token:  twoFactorToken,
		Method: MethodRecoveryCode,
		Code:   code,
		Client: client,
	})
}

// checkTOTPCode verifies a TOTP code and records the matched time step, so a
// code observed once cannot be replayed within the drift window.
func (e *Engine) checkTOTPCode(ctx context.Context, user *User, code string) error {
	if !user.TwoFactor.TOTP.Enabled || len(user.TwoFactor.TOTP.Secret) == 0 {
		return ErrTwoFactorDisabled
	}
	step, ok, err := e.totp.VerifyCode(user.TwoFactor.TOTP.Secret, code, e.now())
	if err != nil {
		return err
	}
	if !ok || step <= user.TwoFactor.TOTP.LastUsedStep {
		return ErrTwoFactorCodeInvalid
	}
	user.TwoFactor.TOTP.LastUsedStep = step
	return e.users.Save(ctx, user)
}

// checkEmailCode validates the single pending code. Success and expiry both
// clear it, so a used-up code is never retryable, while a plain mismatch
// leaves it pending until the two-factor token itself expires.
func (e *Engine) checkEmailCode(ctx context.Context, user *User, code string) error {
	state := user.TwoFactor.Email
	if !state.Enabled {
		return ErrTwoFactorDisabled
	}
	if state.PendingCode == "" {
		return ErrTwoFactorCodeInvalid
	}
	if e.now().After(state.CodeExpiresAt) {
		if err := e.clearEmailCode(ctx, user); err != nil {
			return err
		}
		return ErrTwoFactorCodeInvalid
	}
	if subtle.ConstantTimeCompare([]byte(state.PendingCode), []byte(code)) != 1 {
		return ErrTwoFactorCodeInvalid
	}
	return e.clearEmailCode(ctx, user)
}

func (e *Engine) clearEmailCode(ctx context.Context, user *User) error {
	user.TwoFactor.Email.PendingCode = ""
	user.TwoFactor.Email.CodeExpiresAt = time.Time{}
	return e.users.Save(ctx, user)
}

// consumeRecoveryCode matches code against the stored bcrypt hash set and,
// on success, removes exactly the matched hash. The available count drops by
// one, never zero, never more.
func (e *Engine) consumeRecoveryCode(ctx context.Context, user *User, code string) error {
	hashes := user.TwoFactor.TOTP.RecoveryCodeHashes
	for i, h := range hashes {
		ok, err := e.hasher.Verify(code, string(h))
		if err != nil {
			continue // malformed stored hash, skip rather than abort
		}
		if ok {
			user.TwoFactor.TOTP.RecoveryCodeHashes = append(hashes[:i:i], hashes[i+1:]...)
			return e.users.Save(ctx, user)
		}
	}
	return ErrTwoFactorCodeInvalid
}

// SendTwoFactorCode explicitly (re)dispatches an email code for a pending
// two-factor login. Unlike the automatic dispatch at login, an active
// cooldown surfaces here as a CooldownError with the remaining window.
func (e *Engine) SendTwoFactorCode(ctx context.Context, twoFactorToken, locale string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	claims, err := e.codec.ParseTwoFactor(twoFactorToken)
	if err != nil {
		return mapTokenError(err)
	}
	user, err := e.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if !user.TwoFactor.Enabled || !user.TwoFactor.Email.Enabled {
		return ErrTwoFactorDisabled
	}
	return e.dispatchEmailCode(ctx, user, locale, false)
}

// dispatchEmailCode generates a fresh code, stores it with expiry on the
// user and mails it, all behind the cooldown gate. With silent set an active
// cooldown is a no-op; otherwise it is reported to the caller.
func (e *Engine) dispatchEmailCode(ctx context.Context, user *User, locale string, silent bool) error {
	won, err := e.cooldowns.Acquire(ctx, cooldownTwoFactor, user.ID, e.config.Cooldown.TwoFactorEmail)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if !won {
		if silent {
			e.metricInc(MetricTwoFactorCodeSkipped)
			return nil
		}
		remaining, _ := e.cooldowns.Remaining(ctx, cooldownTwoFactor, user.ID)
		return &CooldownError{Remaining: remaining}
	}

	code, err := internal.NewOTP(e.config.TwoFactor.EmailCodeDigits)
	if err != nil {
		return err
	}
	user.TwoFactor.Email.PendingCode = code
	user.TwoFactor.Email.CodeExpiresAt = e.now().Add(e.config.TwoFactor.EmailCodeTTL)
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}
	if e.notifier != nil {
		if err := e.notifier.Send(ctx, user.Email, "Your login code", code, locale); err != nil {
			return err
		}
	}
	e.metricInc(MetricTwoFactorCodeSent)
	e.emitUserAudit(ctx, auditTwoFactorSent, true, user, "", "", nil, nil)
	return nil
}

// TwoFactorCooldown reports the remaining email-code cooldown for a user;
// zero when none is active.
func (e *Engine) TwoFactorCooldown(ctx context.Context, userID string) (time.Duration, error) {
	return e.cooldowns.Remaining(ctx, cooldownTwoFactor, userID)
}

// VerificationCooldown reports the remaining verification-mail cooldown for
// an address.
func (e *Engine) VerificationCooldown(ctx context.Context, email string) (time.Duration, error) {
	return e.cooldowns.Remaining(ctx, cooldownVerification, normalizeEmail(email))
}

// PasswordResetCooldown reports the remaining reset-mail cooldown for an
// address.
func (e *Engine) PasswordResetCooldown(ctx context.Context, email string) (time.Duration, error) {
	return e.cooldowns.Remaining(ctx, cooldownReset, normalizeEmail(email))
}
